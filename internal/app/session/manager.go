// Package session provides the session manager, the boundary between chat
// commands and the per-guild queue and playback controller.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/queue"
	"github.com/osa030/19voice/internal/app/resolver"
	"github.com/osa030/19voice/internal/app/session/registry"
	"github.com/osa030/19voice/internal/domain/track"
)

// DefaultEventBuffer is the playback event channel capacity.
const DefaultEventBuffer = 64

// Resolver turns a URL or search text into track metadata.
type Resolver interface {
	Resolve(ctx context.Context, query string) (track.Metadata, error)
}

// Config holds manager configuration.
type Config struct {
	EventBuffer int
}

// Manager serializes commands and engine signals per session and fans
// playback events out to subscribers.
type Manager struct {
	registry     *registry.Registry
	resolver     Resolver
	filterChain  *filter.Chain
	notification *notification.Manager

	eventCh chan playback.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager and starts its event loop. Close
// stops it.
func NewManager(
	cfg Config,
	engine playback.Engine,
	res Resolver,
	filterChain *filter.Chain,
	notif *notification.Manager,
) *Manager {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if filterChain == nil {
		filterChain = filter.NewChain()
	}
	if notif == nil {
		notif = notification.NewManager(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		resolver:     res,
		filterChain:  filterChain,
		notification: notif,
		eventCh:      make(chan playback.Event, cfg.EventBuffer),
		ctx:          ctx,
		cancel:       cancel,
	}
	m.registry = registry.New(registry.Config{
		Engine:     engine,
		Notifier:   playback.NotifierFunc(m.sendEvent),
		OnTrackEnd: m.onTrackEnd,
	})

	m.wg.Add(1)
	go m.playbackLoop()
	return m
}

// PlayResult describes an accepted play request.
type PlayResult struct {
	Track    *track.Track
	Started  bool // Track started playing immediately
	Position int  // 1-based queue position
}

// OnPlay resolves query, runs the request filters and queues the track,
// starting playback if the queue was empty. Resolution happens before the
// session lock is taken.
func (m *Manager) OnPlay(ctx context.Context, sessionID, channelID, query string, requester track.Requester) (*PlayResult, error) {
	meta, err := m.resolver.Resolve(ctx, query)
	if err != nil {
		if !errors.Is(err, resolver.ErrResolve) {
			err = errors.Mark(err, resolver.ErrResolve)
		}
		zlog.Info().Msgf("play request not resolved: session=%s query=%q error=%v", sessionID, query, err)
		return nil, err
	}
	t := track.New(meta, requester)

	s := m.registry.GetOrCreate(sessionID)
	s.Lock()
	defer s.Unlock()

	if channelID != "" {
		s.SetChannelID(channelID)
	}
	q := s.Queue()

	result := m.filterChain.Execute(ctx, filter.Request{Track: t, Queued: q.Tracks()})
	zlog.Info().Msgf("track request: session=%s requester=%s title=%q result=%t code=%s",
		sessionID, requester.Name, t.Title, result.Accepted, result.Code)
	if !result.Accepted {
		return nil, &RejectedError{Code: result.Code}
	}

	if wasEmpty := q.Add(t); wasEmpty {
		if err := s.Controller().Start(ctx, t); err != nil {
			return nil, err
		}
		return &PlayResult{Track: t, Started: true, Position: 1}, nil
	}
	return &PlayResult{Track: t, Position: q.Size()}, nil
}

// SkipResult describes a skip.
type SkipResult struct {
	Skipped *track.Track
	Next    *track.Track // nil when the queue ended
}

// OnSkip skips the current track.
func (m *Manager) OnSkip(ctx context.Context, sessionID string) (*SkipResult, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, playback.ErrNotPlaying
	}
	s.Lock()
	defer s.Unlock()

	skipped := s.Controller().Current()
	next, err := s.Controller().Skip(ctx)
	if err != nil {
		return nil, err
	}
	return &SkipResult{Skipped: skipped, Next: next}, nil
}

// OnRemove removes the track at a 1-based queue position.
func (m *Manager) OnRemove(ctx context.Context, sessionID string, position int) (*track.Track, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, errors.Wrapf(queue.ErrOutOfRange, "position %d (size 0)", position)
	}
	s.Lock()
	defer s.Unlock()

	removed, err := s.Queue().RemoveAt(position)
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("track removed: session=%s position=%d title=%q", sessionID, position, removed.Title)
	return removed, nil
}

// OnPause pauses playback and returns the paused track.
func (m *Manager) OnPause(ctx context.Context, sessionID string) (*track.Track, error) {
	return m.withController(sessionID, func(c *playback.Controller) error { return c.Pause(ctx) })
}

// OnUnpause resumes playback and returns the resumed track.
func (m *Manager) OnUnpause(ctx context.Context, sessionID string) (*track.Track, error) {
	return m.withController(sessionID, func(c *playback.Controller) error { return c.Resume(ctx) })
}

// OnStop stops playback, clears the queue and leaves the voice channel.
func (m *Manager) OnStop(ctx context.Context, sessionID string) error {
	_, err := m.withController(sessionID, func(c *playback.Controller) error { return c.Stop(ctx) })
	return err
}

// withController runs fn under the session lock and returns the head as it
// was before fn ran.
func (m *Manager) withController(sessionID string, fn func(c *playback.Controller) error) (*track.Track, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, playback.ErrNotPlaying
	}
	s.Lock()
	defer s.Unlock()

	current := s.Controller().Current()
	if err := fn(s.Controller()); err != nil {
		return nil, err
	}
	return current, nil
}

// ListQueue returns a copy of the session queue in play order.
func (m *Manager) ListQueue(sessionID string) []*track.Track {
	return m.Snapshot(sessionID).Tracks
}

// Snapshot is a point-in-time copy of one session.
type Snapshot struct {
	SessionID  string
	State      playback.State
	Generation uint64
	Current    *track.Track
	Tracks     []*track.Track
}

// Snapshot returns a copy of the session state. Unknown sessions are idle.
func (m *Manager) Snapshot(sessionID string) Snapshot {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return Snapshot{SessionID: sessionID, State: playback.StateIdle, Tracks: []*track.Track{}}
	}
	return snapshotOf(s)
}

// Snapshots returns a copy of every known session.
func (m *Manager) Snapshots() []Snapshot {
	sessions := m.registry.All()
	result := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, snapshotOf(s))
	}
	return result
}

func snapshotOf(s *registry.Session) Snapshot {
	s.Lock()
	defer s.Unlock()
	return Snapshot{
		SessionID:  s.ID,
		State:      s.Controller().State(),
		Generation: s.Controller().Generation(),
		Current:    s.Controller().Current(),
		Tracks:     s.Queue().Tracks(),
	}
}

// ChannelID returns the text channel the session last took a command from.
func (m *Manager) ChannelID(sessionID string) string {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return ""
	}
	s.Lock()
	defer s.Unlock()
	return s.ChannelID()
}

// HandleDisconnected tears a session down after its voice connection went
// away without a command.
func (m *Manager) HandleDisconnected(sessionID string) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Controller().Detach()
}

// StopAll stops every active session and leaves voice. It is used on
// shutdown so no end signal advances a queue afterwards.
func (m *Manager) StopAll(ctx context.Context) {
	for _, s := range m.registry.All() {
		s.Lock()
		if s.Controller().State() != playback.StateIdle {
			if err := s.Controller().Stop(ctx); err != nil {
				zlog.Warn().Msgf("session stop on shutdown failed: session=%s error=%v", s.ID, err)
			}
		}
		s.Unlock()
	}
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// onTrackEnd is every session's end-of-track subscription. It runs on the
// engine's goroutine and looks the session up by key at fire time.
func (m *Manager) onTrackEnd(sessionID string, generation uint64) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Controller().OnTrackEnd(m.ctx, generation)
}

// sendEvent queues a playback event without blocking. It is called with a
// session lock held.
func (m *Manager) sendEvent(ev playback.Event) {
	select {
	case m.eventCh <- ev:
	default:
		zlog.Warn().Msgf("playback event dropped, channel full: type=%s session=%s", ev.Type, ev.SessionID)
	}
}

// playbackLoop broadcasts playback events.
func (m *Manager) playbackLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
			// Restart loop so events keep flowing
			zlog.Info().Msg("restarting playback loop")
			go m.playbackLoop()
			return
		}
		m.wg.Done()
	}()

	for {
		select {
		case <-m.ctx.Done():
			return
		case ev := <-m.eventCh:
			m.handlePlaybackEvent(ev)
		}
	}
}

func (m *Manager) handlePlaybackEvent(ev playback.Event) {
	title := ""
	if ev.Track != nil {
		title = ev.Track.Title
	}
	zlog.Debug().Msgf("playback event: type=%s session=%s reason=%s state=%s title=%q",
		ev.Type, ev.SessionID, ev.Reason, ev.State, title)
	m.notification.Broadcast(ev)
}

// Close stops the event loop and removes all subscribers. Sessions are left
// as they are; callers disconnect voice separately.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.notification.Close()
}
