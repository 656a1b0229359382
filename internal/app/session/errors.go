package session

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/queue"
	"github.com/osa030/19voice/internal/app/resolver"
)

// ErrRejected is the kind of every RejectedError.
var ErrRejected = errors.New("request rejected")

// RejectedError is returned when a request filter refuses a play request.
type RejectedError struct {
	Code string // Filter return code
}

func (e *RejectedError) Error() string {
	return "request rejected: " + e.Code
}

// Is makes errors.Is(err, ErrRejected) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Message codes for command errors. Filter rejections use the filter's own
// return code.
const (
	CodeNoResults     = "no_results"
	CodeResolveFailed = "resolve_failed"
	CodeCurrentTrack  = "current_track"
	CodeOutOfRange    = "out_of_range"
	CodeNotPlaying    = "not_playing"
	CodeNotPaused     = "not_paused"
	CodeAlreadyPaused = "already_paused"
	CodeInvalidState  = "invalid_state"
	CodeEngineError   = "engine_error"
	CodeInternalError = "internal_error"
)

// MessageCode maps a command error to the code of its user-facing message.
func MessageCode(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return rejected.Code
	case errors.Is(err, resolver.ErrNoResults):
		return CodeNoResults
	case errors.Is(err, resolver.ErrResolve):
		return CodeResolveFailed
	case errors.Is(err, queue.ErrCurrentTrack):
		return CodeCurrentTrack
	case errors.Is(err, queue.ErrOutOfRange):
		return CodeOutOfRange
	case errors.Is(err, playback.ErrEngine):
		return CodeEngineError
	case errors.Is(err, playback.ErrAlreadyPaused):
		return CodeAlreadyPaused
	case errors.Is(err, playback.ErrNotPaused):
		return CodeNotPaused
	case errors.Is(err, playback.ErrNotPlaying):
		return CodeNotPlaying
	case errors.Is(err, playback.ErrInvalidState):
		return CodeInvalidState
	default:
		return CodeInternalError
	}
}
