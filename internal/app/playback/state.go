// Package playback provides the per-session track-transition state machine
// that drives the audio engine from a queue.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No bound track, engine not streaming
	StatePlaying              // Head is bound and streaming
	StatePaused               // Head is bound, engine paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
