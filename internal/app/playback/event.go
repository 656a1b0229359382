package playback

import "github.com/osa030/19voice/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track bound to the engine
	EventTrackSkipped                  // Track was skipped
	EventStateChanged                  // Playback paused or resumed
	EventStopped                       // Session stopped and queue cleared
	EventEngineFailed                  // Engine error forced a teardown
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventStopped:
		return "stopped"
	case EventEngineFailed:
		return "engine_failed"
	default:
		return "unknown"
	}
}

// Reason tells what caused a transition.
type Reason int

const (
	ReasonCommand      Reason = iota // A user or admin command
	ReasonTrackEnd                   // The engine reported end of track
	ReasonDisconnected               // The voice connection went away
	ReasonEngineError                // An engine call failed
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonCommand:
		return "command"
	case ReasonTrackEnd:
		return "track_end"
	case ReasonDisconnected:
		return "disconnected"
	case ReasonEngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	SessionID string
	Track     *track.Track // Track the event is about (nil for some events)
	State     State        // Playback state after the transition
	Reason    Reason
	Err       error // Set for EventEngineFailed
}

// Notifier receives playback events. Notify is called with the session lock
// held and must not block.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ev Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }
