package playback

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/queue"
	"github.com/osa030/19voice/internal/domain/track"
)

// Errors
var (
	ErrInvalidState = errors.New("invalid playback state")
	ErrEngine       = errors.New("audio engine failure")

	ErrNotPlaying     = errors.Wrap(ErrInvalidState, "not playing")
	ErrNotPaused      = errors.Wrap(ErrInvalidState, "not paused")
	ErrAlreadyPaused  = errors.Wrap(ErrInvalidState, "already paused")
	ErrAlreadyPlaying = errors.Wrap(ErrInvalidState, "already playing")
	ErrQueueEmpty     = errors.Wrap(ErrInvalidState, "queue is empty")
	ErrNotHead        = errors.Wrap(ErrInvalidState, "track is not the queue head")
)

// Controller binds the head of a queue to the audio engine and advances the
// queue when the track ends or is skipped.
//
// Controller does no locking of its own. Every method must be called while
// holding the lock of the session that owns both the controller and its queue.
type Controller struct {
	sessionID string
	queue     *queue.Queue
	engine    Engine
	notifier  Notifier
	onEnd     EndFunc

	state      State
	current    *track.Track
	handle     Handle
	generation uint64
}

// NewController creates a controller for one session. onEnd is the session's
// single end-of-track subscription; it is re-armed on every start.
func NewController(sessionID string, q *queue.Queue, engine Engine, notifier Notifier, onEnd EndFunc) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}
	return &Controller{
		sessionID: sessionID,
		queue:     q,
		engine:    engine,
		notifier:  notifier,
		onEnd:     onEnd,
		state:     StateIdle,
	}
}

// State returns the playback state.
func (c *Controller) State() State {
	return c.state
}

// Current returns the bound track, or nil when idle.
func (c *Controller) Current() *track.Track {
	return c.current
}

// Generation returns the current transition counter.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Start binds t, which must be the queue head, while idle.
func (c *Controller) Start(ctx context.Context, t *track.Track) error {
	if c.state != StateIdle {
		return ErrAlreadyPlaying
	}
	head := c.queue.PeekHead()
	if head == nil {
		return ErrQueueEmpty
	}
	if head != t {
		return ErrNotHead
	}
	return c.bindLocked(ctx, t, ReasonCommand)
}

// OnTrackEnd handles an end-of-track signal. Signals whose generation does not
// match the current one are stale and discarded. It reports whether the
// signal caused a transition.
func (c *Controller) OnTrackEnd(ctx context.Context, generation uint64) bool {
	if c.state == StateIdle || generation != c.generation {
		zlog.Debug().Msgf("playback: stale end signal discarded: session=%s signal_gen=%d current_gen=%d state=%s",
			c.sessionID, generation, c.generation, c.state)
		return false
	}

	zlog.Debug().Msgf("playback: track ended: session=%s gen=%d title=%q", c.sessionID, generation, c.current.Title)
	if _, err := c.advanceLocked(ctx, ReasonTrackEnd); err != nil {
		zlog.Error().Msgf("playback: advance after track end failed: session=%s error=%v", c.sessionID, err)
	}
	return true
}

// Skip stops the current track and advances. It returns the new head, or nil
// when the queue ended and the session was torn down.
func (c *Controller) Skip(ctx context.Context) (*track.Track, error) {
	if c.state == StateIdle {
		return nil, ErrNotPlaying
	}

	// The stop raises an end signal under the old generation; bump first so
	// that signal is discarded.
	c.generation++
	skipped := c.current
	if err := c.handle.Stop(); err != nil {
		c.handle = nil
		return nil, c.failSafeLocked(ctx, errors.Wrap(err, "stop"))
	}
	zlog.Info().Msgf("playback: skipped: session=%s title=%q", c.sessionID, skipped.Title)
	c.notifier.Notify(Event{
		Type:      EventTrackSkipped,
		SessionID: c.sessionID,
		Track:     skipped,
		State:     c.state,
		Reason:    ReasonCommand,
	})

	return c.advanceLocked(ctx, ReasonCommand)
}

// Pause pauses the bound track.
func (c *Controller) Pause(ctx context.Context) error {
	switch c.state {
	case StateIdle:
		return ErrNotPlaying
	case StatePaused:
		return ErrAlreadyPaused
	}
	if err := c.handle.Pause(); err != nil {
		return c.failSafeLocked(ctx, errors.Wrap(err, "pause"))
	}
	c.state = StatePaused
	c.sendStateChangedLocked()
	return nil
}

// Resume resumes a paused track.
func (c *Controller) Resume(ctx context.Context) error {
	if c.state != StatePaused {
		return ErrNotPaused
	}
	if err := c.handle.Resume(); err != nil {
		return c.failSafeLocked(ctx, errors.Wrap(err, "resume"))
	}
	c.state = StatePlaying
	c.sendStateChangedLocked()
	return nil
}

// Stop stops playback, clears the queue and disconnects.
func (c *Controller) Stop(ctx context.Context) error {
	if c.state == StateIdle {
		return ErrNotPlaying
	}

	c.generation++
	stopped := c.current
	stopErr := c.handle.Stop()
	c.resetLocked()

	var errs error
	if stopErr != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(stopErr, "stop"))
	}
	if err := c.engine.Disconnect(ctx, c.sessionID); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "disconnect"))
	}
	if errs != nil {
		err := errors.Mark(errs, ErrEngine)
		zlog.Error().Msgf("playback: stop failed: session=%s error=%v", c.sessionID, err)
		c.sendFailureLocked(stopped, err)
		return err
	}

	zlog.Info().Msgf("playback: stopped: session=%s", c.sessionID)
	c.notifier.Notify(Event{
		Type:      EventStopped,
		SessionID: c.sessionID,
		Track:     stopped,
		State:     StateIdle,
		Reason:    ReasonCommand,
	})
	return nil
}

// Detach tears the session down after the voice connection was lost outside
// the controller. It clears the queue without calling Disconnect. It is a
// no-op when already idle with an empty queue.
func (c *Controller) Detach() {
	if c.state == StateIdle && c.queue.IsEmpty() {
		return
	}
	c.generation++
	wasPlaying := c.current
	if c.handle != nil {
		if err := c.handle.Stop(); err != nil {
			zlog.Warn().Msgf("playback: stop on detach failed: session=%s error=%v", c.sessionID, err)
		}
	}
	c.resetLocked()

	zlog.Info().Msgf("playback: detached: session=%s", c.sessionID)
	c.notifier.Notify(Event{
		Type:      EventStopped,
		SessionID: c.sessionID,
		Track:     wasPlaying,
		State:     StateIdle,
		Reason:    ReasonDisconnected,
	})
}

// bindLocked binds t and arms the end subscription under a new generation.
func (c *Controller) bindLocked(ctx context.Context, t *track.Track, reason Reason) error {
	h, err := c.engine.Bind(ctx, c.sessionID, t.Source)
	if err != nil {
		return c.failSafeLocked(ctx, errors.Wrapf(err, "bind %q", t.Title))
	}

	c.generation++
	c.state = StatePlaying
	c.current = t
	c.handle = h
	h.Subscribe(c.generation, c.onEnd)

	zlog.Info().Msgf("playback: now playing: session=%s gen=%d title=%q duration=%s",
		c.sessionID, c.generation, t.Title, t.DurationString())
	c.notifier.Notify(Event{
		Type:      EventTrackStarted,
		SessionID: c.sessionID,
		Track:     t,
		State:     StatePlaying,
		Reason:    reason,
	})
	return nil
}

// advanceLocked drops the head and binds the next track, or tears the session
// down when nothing is left. The caller has already released the old handle.
func (c *Controller) advanceLocked(ctx context.Context, reason Reason) (*track.Track, error) {
	c.state = StateIdle
	c.current = nil
	c.handle = nil

	next := c.queue.Advance()
	if next != nil {
		if err := c.bindLocked(ctx, next, reason); err != nil {
			return nil, err
		}
		return next, nil
	}

	c.generation++
	c.queue.Clear()
	zlog.Info().Msgf("playback: queue ended: session=%s", c.sessionID)
	if err := c.engine.Disconnect(ctx, c.sessionID); err != nil {
		return nil, c.failSafeLocked(ctx, errors.Wrap(err, "disconnect"))
	}
	return nil, nil
}

// failSafeLocked forces the session to idle with an empty queue after an
// engine failure and returns cause marked as ErrEngine.
func (c *Controller) failSafeLocked(ctx context.Context, cause error) error {
	err := errors.Mark(cause, ErrEngine)
	zlog.Error().Msgf("playback: engine failure, tearing down: session=%s error=%v", c.sessionID, err)

	c.generation++
	failed := c.current
	if c.handle != nil {
		if stopErr := c.handle.Stop(); stopErr != nil {
			zlog.Warn().Msgf("playback: stop during teardown failed: session=%s error=%v", c.sessionID, stopErr)
		}
	}
	c.resetLocked()
	if dErr := c.engine.Disconnect(ctx, c.sessionID); dErr != nil {
		zlog.Warn().Msgf("playback: disconnect during teardown failed: session=%s error=%v", c.sessionID, dErr)
	}

	c.sendFailureLocked(failed, err)
	return err
}

func (c *Controller) sendFailureLocked(t *track.Track, err error) {
	c.notifier.Notify(Event{
		Type:      EventEngineFailed,
		SessionID: c.sessionID,
		Track:     t,
		State:     StateIdle,
		Reason:    ReasonEngineError,
		Err:       err,
	})
}

func (c *Controller) resetLocked() {
	c.queue.Clear()
	c.state = StateIdle
	c.current = nil
	c.handle = nil
}

func (c *Controller) sendStateChangedLocked() {
	c.notifier.Notify(Event{
		Type:      EventStateChanged,
		SessionID: c.sessionID,
		Track:     c.current,
		State:     c.state,
		Reason:    ReasonCommand,
	})
}
