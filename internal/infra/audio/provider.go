package audio

import (
	"context"
	"io"
	"sync"
	"time"
)

// silenceTimeout is how long the voice connection waits for a frame before
// it is handed silence.
const silenceTimeout = 100 * time.Millisecond

// frameProvider hands encoded Opus frames to the voice connection. A nil
// frame marks the end of the stream.
type frameProvider struct {
	ctx      context.Context
	frames   chan []byte
	onFinish func()
	once     sync.Once

	pausedMu   sync.Mutex
	pausedCond *sync.Cond
	paused     bool
}

func newFrameProvider(ctx context.Context, buffer int, onFinish func()) *frameProvider {
	if buffer <= 0 {
		buffer = 100
	}
	p := &frameProvider{
		ctx:      ctx,
		frames:   make(chan []byte, buffer),
		onFinish: onFinish,
	}
	p.pausedCond = sync.NewCond(&p.pausedMu)
	return p
}

// push queues a frame, blocking while the buffer is full.
func (p *frameProvider) push(f []byte) {
	select {
	case p.frames <- f:
	case <-p.ctx.Done():
	}
}

// ProvideOpusFrame returns the next frame, nil for silence, or io.EOF once
// the stream ended or was cancelled. It blocks while paused.
func (p *frameProvider) ProvideOpusFrame() ([]byte, error) {
	p.pausedMu.Lock()
	for p.paused && p.ctx.Err() == nil {
		p.pausedCond.Wait()
	}
	p.pausedMu.Unlock()

	if p.ctx.Err() != nil {
		p.Close()
		return nil, io.EOF
	}

	timer := time.NewTimer(silenceTimeout)
	defer timer.Stop()

	select {
	case f := <-p.frames:
		if f == nil {
			p.Close()
			return nil, io.EOF
		}
		return f, nil
	case <-p.ctx.Done():
		p.Close()
		return nil, io.EOF
	case <-timer.C:
		return nil, nil
	}
}

// Close reports the end of the stream once.
func (p *frameProvider) Close() {
	p.once.Do(func() {
		if p.onFinish != nil {
			p.onFinish()
		}
	})
}

func (p *frameProvider) setPaused(paused bool) {
	p.pausedMu.Lock()
	p.paused = paused
	p.pausedMu.Unlock()
	p.pausedCond.Broadcast()
}

// wake releases a reader blocked on pause after the context was cancelled.
func (p *frameProvider) wake() {
	p.pausedMu.Lock()
	p.pausedMu.Unlock()
	p.pausedCond.Broadcast()
}
