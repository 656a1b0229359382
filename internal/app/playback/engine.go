package playback

import (
	"context"

	"github.com/osa030/19voice/internal/domain/track"
)

// EndFunc receives an end-of-track signal tagged with the generation it was
// subscribed under.
type EndFunc func(generation uint64)

// Engine streams resolved sources into a session's voice connection.
type Engine interface {
	// Bind starts streaming src and returns a handle to control it.
	Bind(ctx context.Context, sessionID string, src track.Source) (Handle, error)
	// Disconnect leaves the session's voice connection.
	Disconnect(ctx context.Context, sessionID string) error
}

// Handle controls one bound source.
//
// End signals are delivered on the engine's own goroutine, never from inside
// Subscribe or Stop, since callers hold the session lock while calling them.
// A stop also ends the track, so it raises the signal as well.
type Handle interface {
	// Subscribe arms fn to be called once when the stream ends. If the stream
	// already ended, fn is called promptly.
	Subscribe(generation uint64, fn EndFunc)
	Stop() error
	Pause() error
	Resume() error
}
