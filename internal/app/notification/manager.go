// Package notification provides the notification manager for broadcasting
// playback events to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/playback"
)

// DefaultSendTimeout bounds one subscriber's handling of one notification.
const DefaultSendTimeout = 5 * time.Second

// Notification is one playback event with its broadcast sequence number.
type Notification struct {
	SequenceNo uint64
	Event      playback.Event
}

// Subscriber receives notifications.
type Subscriber interface {
	Send(ctx context.Context, n Notification) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, n Notification) error

// Send calls f(ctx, n).
func (f SubscriberFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// subscription represents a subscriber's subscription.
type subscription struct {
	id         string
	name       string
	subscriber Subscriber
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	timeout       time.Duration
}

// NewManager creates a new notification manager. A zero timeout uses
// DefaultSendTimeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		timeout:       timeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(name string, s Subscriber) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:         id,
		name:       name,
		subscriber: s,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends an event to all subscribers in parallel and waits until
// each has finished or timed out. It returns the sequence number assigned.
func (m *Manager) Broadcast(ev playback.Event) uint64 {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n := Notification{SequenceNo: m.sequenceNo, Event: ev}
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.subscriber.Send(ctx, n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Msgf("notification: subscriber failed: subscriber=%s seq=%d event=%s error=%v",
						s.name, n.SequenceNo, ev.Type, err)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: subscriber timed out: subscriber=%s seq=%d event=%s",
					s.name, n.SequenceNo, ev.Type)
			}
		}(sub)
	}

	wg.Wait()
	return n.SequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
