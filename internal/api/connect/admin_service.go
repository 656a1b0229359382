package connect

import (
	"context"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
)

// AdminSessions is the part of the session manager the admin service uses.
type AdminSessions interface {
	Snapshots() []session.Snapshot
	Snapshot(sessionID string) session.Snapshot
	OnSkip(ctx context.Context, sessionID string) (*session.SkipResult, error)
	OnPause(ctx context.Context, sessionID string) (*track.Track, error)
	OnUnpause(ctx context.Context, sessionID string) (*track.Track, error)
	OnStop(ctx context.Context, sessionID string) error
}

// Messages looks up user-facing texts by code.
type Messages interface {
	GetMessage(code string) string
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	sessions AdminSessions
	messages Messages
}

// NewAdminService creates a new AdminService.
func NewAdminService(sessions AdminSessions, messages Messages) *AdminService {
	return &AdminService{
		sessions: sessions,
		messages: messages,
	}
}

// Ensure AdminService implements the interface.
var _ AdminServiceHandler = (*AdminService)(nil)

// ListSessions returns every known session.
func (s *AdminService) ListSessions(
	ctx context.Context,
	req *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	snaps := s.sessions.Snapshots()
	infos := make([]SessionInfo, len(snaps))
	for i, snap := range snaps {
		infos[i] = toSessionInfo(snap)
	}
	return connect.NewResponse(&ListSessionsResponse{Sessions: infos}), nil
}

// GetQueue returns one session and its queue.
func (s *AdminService) GetQueue(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[GetQueueResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errSessionIDRequired)
	}
	snap := s.sessions.Snapshot(req.Msg.SessionID)
	tracks := make([]TrackInfo, len(snap.Tracks))
	for i, t := range snap.Tracks {
		tracks[i] = *toTrackInfo(t)
	}
	return connect.NewResponse(&GetQueueResponse{
		Session: toSessionInfo(snap),
		Tracks:  tracks,
	}), nil
}

// Skip skips the current track.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(req, "Track skipped", func(id string) error {
		_, err := s.sessions.OnSkip(ctx, id)
		return err
	})
}

// Pause pauses the session.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(req, "Session paused", func(id string) error {
		_, err := s.sessions.OnPause(ctx, id)
		return err
	})
}

// Resume resumes the session.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(req, "Session resumed", func(id string) error {
		_, err := s.sessions.OnUnpause(ctx, id)
		return err
	})
}

// Stop stops the session, clears its queue and leaves voice.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(req, "Session stopped", func(id string) error {
		return s.sessions.OnStop(ctx, id)
	})
}

// action runs a control command. Command failures are reported in the
// response, not as RPC errors.
func (s *AdminService) action(
	req *connect.Request[SessionRequest],
	done string,
	fn func(sessionID string) error,
) (*connect.Response[ActionResponse], error) {
	id := req.Msg.SessionID
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errSessionIDRequired)
	}
	if err := fn(id); err != nil {
		code := session.MessageCode(err)
		zlog.Info().Msgf("admin: %s failed: session=%s code=%s error=%v", req.Spec().Procedure, id, code, err)
		return connect.NewResponse(&ActionResponse{
			Success: false,
			Code:    code,
			Message: s.messages.GetMessage(code),
		}), nil
	}
	zlog.Info().Msgf("admin: %s: session=%s", req.Spec().Procedure, id)
	return connect.NewResponse(&ActionResponse{
		Success: true,
		Message: done,
	}), nil
}
