package audio

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/playback"
)

// producer writes encoded frames through push until the stream ends.
type producer func(ctx context.Context, push func([]byte)) error

// handle is one bound track. Its end signal fires exactly once, on its own
// goroutine, when the stream is drained or the handle is stopped.
type handle struct {
	locator  string
	provider *frameProvider
	cancel   context.CancelFunc

	mu    sync.Mutex
	ended bool
	gen   uint64
	onEnd playback.EndFunc
}

func newHandle(locator string, buffer int) *handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{locator: locator, cancel: cancel}
	h.provider = newFrameProvider(ctx, buffer, h.finish)
	return h
}

// run feeds the provider from produce and marks the end of the stream. It
// blocks until produce returns.
func (h *handle) run(produce producer) {
	defer h.provider.push(nil)
	if err := produce(h.provider.ctx, h.provider.push); err != nil && h.provider.ctx.Err() == nil {
		zlog.Warn().Msgf("audio: stream failed: source=%s error=%v", h.locator, err)
	}
}

// Subscribe arms the end callback. If the stream already ended the callback
// fires right away.
func (h *handle) Subscribe(generation uint64, fn playback.EndFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen = generation
	h.onEnd = fn
	if h.ended && fn != nil {
		go fn(generation)
	}
}

func (h *handle) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return
	}
	h.ended = true
	if h.onEnd != nil {
		go h.onEnd(h.gen)
	}
}

// Stop cancels the stream and raises the end signal.
func (h *handle) Stop() error {
	h.cancel()
	h.provider.wake()
	h.finish()
	return nil
}

// Pause holds frames back. Pausing an ended stream is a no-op.
func (h *handle) Pause() error {
	h.provider.setPaused(true)
	return nil
}

// Resume releases paused frames.
func (h *handle) Resume() error {
	h.provider.setPaused(false)
	return nil
}
