package connect

import (
	"context"
	"sync"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/session"
)

// ListenerSessions is the part of the session manager the listener service
// uses.
type ListenerSessions interface {
	Snapshots() []session.Snapshot
	GetNotificationManager() *notification.Manager
}

// ListenerService implements the read-only ListenerService RPC.
type ListenerService struct {
	sessions ListenerSessions

	done      chan struct{}
	closeOnce sync.Once
}

// NewListenerService creates a new ListenerService.
func NewListenerService(sessions ListenerSessions) *ListenerService {
	return &ListenerService{
		sessions: sessions,
		done:     make(chan struct{}),
	}
}

// Ensure ListenerService implements the interface.
var _ ListenerServiceHandler = (*ListenerService)(nil)

// WatchEvents streams the current state of the watched sessions followed by
// their playback events.
func (s *ListenerService) WatchEvents(
	ctx context.Context,
	req *connect.Request[WatchEventsRequest],
	stream *connect.ServerStream[EventMessage],
) error {
	filter := req.Msg.SessionID
	adapter := &eventStreamAdapter{stream: stream, sessionID: filter}

	// Subscribe before taking the snapshot so no event is lost; the adapter
	// lock holds events back until the initial state is out.
	adapter.mu.Lock()
	notifManager := s.sessions.GetNotificationManager()
	subscriptionID := notifManager.Subscribe("watch:"+req.Peer().Addr, adapter)
	defer notifManager.Unsubscribe(subscriptionID)

	for _, snap := range s.sessions.Snapshots() {
		if filter != "" && snap.SessionID != filter {
			continue
		}
		if err := stream.Send(initialStateMessage(snap)); err != nil {
			adapter.mu.Unlock()
			return err
		}
	}
	adapter.mu.Unlock()
	zlog.Debug().Msgf("listener: watch started: peer=%s session=%q", req.Peer().Addr, filter)

	// Wait for context cancellation or service shutdown
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	zlog.Debug().Msgf("listener: watch ended: peer=%s", req.Peer().Addr)
	return nil
}

// Close ends every open watch stream.
func (s *ListenerService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// eventStreamAdapter adapts connect.ServerStream to notification.Subscriber.
type eventStreamAdapter struct {
	mu        sync.Mutex
	stream    *connect.ServerStream[EventMessage]
	sessionID string
}

func (a *eventStreamAdapter) Send(ctx context.Context, n notification.Notification) error {
	if a.sessionID != "" && n.Event.SessionID != a.sessionID {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(toEventMessage(n))
}
