// Package registry maps voice session IDs to their queue and playback
// controller.
package registry

import (
	"sort"
	"sync"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/queue"
)

// Session is one guild's queue and controller behind a single lock. Every
// Queue mutation, Controller transition and read of the current head happens
// between Lock and Unlock.
type Session struct {
	ID string

	mu         sync.Mutex
	queue      *queue.Queue
	controller *playback.Controller
	channelID  string
}

// Lock acquires the session lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Queue returns the session queue. The caller holds the lock.
func (s *Session) Queue() *queue.Queue { return s.queue }

// Controller returns the session controller. The caller holds the lock.
func (s *Session) Controller() *playback.Controller { return s.controller }

// ChannelID returns the text channel announcements go to. The caller holds
// the lock.
func (s *Session) ChannelID() string { return s.channelID }

// SetChannelID records the text channel of the latest command. The caller
// holds the lock.
func (s *Session) SetChannelID(id string) { s.channelID = id }

// Config holds what every new session's controller is built from.
type Config struct {
	Engine   playback.Engine
	Notifier playback.Notifier
	// OnTrackEnd receives end signals for any session. It must look the
	// session up again by ID rather than capture it.
	OnTrackEnd func(sessionID string, generation uint64)
}

// Registry manages sessions with thread-safe access. Sessions are reset to
// idle when their queue ends but are never removed, so a session's generation
// counter only grows for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   Config
}

// New creates a new registry.
func New(cfg Config) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		config:   cfg,
	}
}

// GetOrCreate returns the session for id, creating an idle one if needed.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}

	s = &Session{ID: id, queue: queue.New()}
	onEnd := r.config.OnTrackEnd
	s.controller = playback.NewController(id, s.queue, r.config.Engine, r.config.Notifier, func(gen uint64) {
		if onEnd != nil {
			onEnd(id, gen)
		}
	})
	r.sessions[id] = s
	return s
}

// Get retrieves a session by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// All returns all sessions ordered by ID.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Count returns the number of known sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
