package audio

import (
	"context"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/cockroachdb/errors"
)

const (
	sampleRate = 48000
	// frameSamples is one 20ms Opus frame at 48kHz.
	frameSamples = 960
)

// transcoder decodes any container ffmpeg understands from a reader and
// re-encodes it as 48kHz stereo Opus frames.
type transcoder struct {
	bitrate int

	inputCtx               *astiav.FormatContext
	decoderCtx, encoderCtx *astiav.CodecContext
	audioStreamIndex       int
	packet                 *astiav.Packet
	frame                  *astiav.Frame
	resampleCtx            *astiav.SoftwareResampleContext
	resampleFrame          *astiav.Frame
	fifo                   *astiav.AudioFifo
	onFrame                func([]byte)
	pts                    int64
}

func newTranscoder(bitrate int) *transcoder {
	return &transcoder{
		bitrate:       bitrate,
		packet:        astiav.AllocPacket(),
		frame:         astiav.AllocFrame(),
		resampleFrame: astiav.AllocFrame(),
	}
}

// openInput probes r through a custom IO context and picks its first audio
// stream.
func (t *transcoder) openInput(r io.Reader) error {
	t.inputCtx = astiav.AllocFormatContext()
	if t.inputCtx == nil {
		return errors.New("failed to alloc format context")
	}

	ioCtx, err := astiav.AllocIOContext(16*1024, false, func(b []byte) (int, error) {
		return r.Read(b)
	}, func(offset int64, whence int) (int64, error) {
		return 0, errors.New("seek not supported")
	}, nil)
	if err != nil {
		return errors.Wrap(err, "alloc io context")
	}
	t.inputCtx.SetPb(ioCtx)
	t.inputCtx.SetFlags(t.inputCtx.Flags().Add(astiav.FormatContextFlagCustomIo))

	opts := astiav.NewDictionary()
	defer opts.Free()
	opts.Set("probesize", "10000000", 0)
	opts.Set("analyzeduration", "10000000", 0)

	if err := t.inputCtx.OpenInput("", nil, opts); err != nil {
		return errors.Wrap(err, "open input")
	}
	if err := t.inputCtx.FindStreamInfo(nil); err != nil {
		return errors.Wrap(err, "find stream info")
	}

	t.audioStreamIndex = -1
	for _, s := range t.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			t.audioStreamIndex = s.Index()
			break
		}
	}
	if t.audioStreamIndex == -1 {
		return errors.New("no audio stream")
	}
	return nil
}

func (t *transcoder) setupDecoder() error {
	p := t.inputCtx.Streams()[t.audioStreamIndex].CodecParameters()
	d := astiav.FindDecoder(p.CodecID())
	if d == nil {
		return errors.Newf("no decoder for %s", p.CodecID())
	}
	t.decoderCtx = astiav.AllocCodecContext(d)
	if err := p.ToCodecContext(t.decoderCtx); err != nil {
		return errors.Wrap(err, "copy codec parameters")
	}
	return errors.Wrap(t.decoderCtx.Open(d, nil), "open decoder")
}

func (t *transcoder) setupEncoder() error {
	e := astiav.FindEncoderByName("libopus")
	if e == nil {
		e = astiav.FindEncoder(astiav.CodecIDOpus)
	}
	if e == nil {
		return errors.New("no opus encoder")
	}
	t.encoderCtx = astiav.AllocCodecContext(e)
	t.encoderCtx.SetBitRate(int64(t.bitrate))
	t.encoderCtx.SetSampleRate(sampleRate)
	t.encoderCtx.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.encoderCtx.SetSampleFormat(astiav.SampleFormatS16)
	t.encoderCtx.SetTimeBase(astiav.NewRational(1, sampleRate))

	o := astiav.NewDictionary()
	defer o.Free()
	o.Set("vbr", "on", 0)
	o.Set("compression_level", "10", 0)
	o.Set("frame_size", "20", 0)
	if err := t.encoderCtx.Open(e, o); err != nil {
		return errors.Wrap(err, "open encoder")
	}

	// Initialized lazily by ConvertFrame from the first decoded frame
	t.resampleCtx = astiav.AllocSoftwareResampleContext()
	if t.resampleCtx == nil {
		return errors.New("failed to allocate resampler")
	}
	return nil
}

// transcode reads the input to the end, passing each encoded frame to on.
func (t *transcoder) transcode(ctx context.Context, on func([]byte)) error {
	defer t.packet.Unref()
	t.onFrame = on
	t.fifo = astiav.AllocAudioFifo(t.encoderCtx.SampleFormat(), t.encoderCtx.ChannelLayout().Channels(), frameSamples*2)
	defer func() {
		t.fifo.Free()
		t.fifo = nil
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.inputCtx.ReadFrame(t.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return errors.Wrap(err, "read frame")
		}
		if t.packet.StreamIndex() != t.audioStreamIndex {
			t.packet.Unref()
			continue
		}
		if err := t.decoderCtx.SendPacket(t.packet); err != nil {
			t.packet.Unref()
			return errors.Wrap(err, "send packet")
		}
		t.packet.Unref()
		t.drainDecoder()
	}

	// Flush the decoder, then the fifo tail, then the encoder
	_ = t.decoderCtx.SendPacket(nil)
	t.drainDecoder()

	for t.fifo.Size() > 0 {
		n := frameSamples
		if t.fifo.Size() < n {
			n = t.fifo.Size()
		}
		t.encodeFromFifo(n)
	}

	_ = t.encoderCtx.SendFrame(nil)
	t.receivePackets()
	return nil
}

// drainDecoder resamples every pending decoded frame into the fifo and
// encodes whole Opus frames from it.
func (t *transcoder) drainDecoder() {
	for {
		if err := t.decoderCtx.ReceiveFrame(t.frame); err != nil {
			return
		}
		t.prepareResampleFrame()
		nb := int(astiav.RescaleQ(int64(t.frame.NbSamples()), astiav.NewRational(1, t.frame.SampleRate()), astiav.NewRational(1, sampleRate)))
		if nb > 0 {
			t.resampleFrame.SetNbSamples(nb)
			_ = t.resampleFrame.AllocBuffer(0)
			if t.resampleCtx.ConvertFrame(t.frame, t.resampleFrame) == nil {
				_, _ = t.fifo.Write(t.resampleFrame)
			}
			for t.fifo.Size() >= frameSamples {
				t.encodeFromFifo(frameSamples)
			}
		}
		t.frame.Unref()
	}
}

func (t *transcoder) prepareResampleFrame() {
	t.resampleFrame.Unref()
	t.resampleFrame.SetChannelLayout(t.encoderCtx.ChannelLayout())
	t.resampleFrame.SetSampleFormat(t.encoderCtx.SampleFormat())
	t.resampleFrame.SetSampleRate(sampleRate)
}

func (t *transcoder) encodeFromFifo(n int) {
	t.prepareResampleFrame()
	t.resampleFrame.SetNbSamples(n)
	_ = t.resampleFrame.AllocBuffer(0)
	_, _ = t.fifo.Read(t.resampleFrame)
	t.resampleFrame.SetPts(t.pts)
	t.pts += int64(n)

	if err := t.encoderCtx.SendFrame(t.resampleFrame); err != nil {
		return
	}
	t.receivePackets()
}

func (t *transcoder) receivePackets() {
	for {
		p := astiav.AllocPacket()
		if t.encoderCtx.ReceivePacket(p) != nil {
			p.Free()
			return
		}
		d := p.Data()
		fd := make([]byte, len(d))
		copy(fd, d)
		t.onFrame(fd)
		p.Free()
	}
}

func (t *transcoder) close() {
	if t.resampleCtx != nil {
		t.resampleCtx.Free()
	}
	if t.resampleFrame != nil {
		t.resampleFrame.Free()
	}
	if t.packet != nil {
		t.packet.Free()
	}
	if t.frame != nil {
		t.frame.Free()
	}
	if t.decoderCtx != nil {
		t.decoderCtx.Free()
	}
	if t.encoderCtx != nil {
		t.encoderCtx.Free()
	}
	if t.inputCtx != nil {
		t.inputCtx.CloseInput()
		t.inputCtx.Free()
	}
}
