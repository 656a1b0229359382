package connect

import (
	"time"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
)

// TrackInfo describes a queued track.
type TrackInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds uint   `json:"duration_seconds"`
	RequesterID     string `json:"requester_id"`
	RequesterName   string `json:"requester_name"`
	AddedAt         string `json:"added_at"`
}

// SessionInfo describes one guild session.
type SessionInfo struct {
	SessionID    string     `json:"session_id"`
	State        string     `json:"state"`
	Generation   uint64     `json:"generation"`
	CurrentTrack *TrackInfo `json:"current_track,omitempty"`
	QueueSize    int        `json:"queue_size"`
}

// ListSessionsRequest is the ListSessions request.
type ListSessionsRequest struct{}

// ListSessionsResponse is the ListSessions response.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionRequest addresses one session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// GetQueueResponse is the GetQueue response. Tracks[0] is the current track.
type GetQueueResponse struct {
	Session SessionInfo `json:"session"`
	Tracks  []TrackInfo `json:"tracks"`
}

// ActionResponse is the response of the control procedures.
type ActionResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WatchEventsRequest is the WatchEvents request. An empty SessionID
// watches every session.
type WatchEventsRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// EventTypeInitialState marks the snapshot messages sent when a watch starts.
const EventTypeInitialState = "initial_state"

// EventMessage is one streamed playback event.
type EventMessage struct {
	SequenceNo uint64     `json:"sequence_no"`
	Type       string     `json:"type"`
	SessionID  string     `json:"session_id"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	Track      *TrackInfo `json:"track,omitempty"`
	QueueSize  int        `json:"queue_size,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func toTrackInfo(t *track.Track) *TrackInfo {
	if t == nil {
		return nil
	}
	return &TrackInfo{
		ID:              t.ID,
		Title:           t.Title,
		URL:             t.URL,
		ThumbnailURL:    t.ThumbnailURL,
		DurationSeconds: t.DurationSeconds(),
		RequesterID:     t.Requester.ID,
		RequesterName:   t.Requester.Name,
		AddedAt:         t.AddedAt.Format(time.RFC3339),
	}
}

func toSessionInfo(s session.Snapshot) SessionInfo {
	return SessionInfo{
		SessionID:    s.SessionID,
		State:        s.State.String(),
		Generation:   s.Generation,
		CurrentTrack: toTrackInfo(s.Current),
		QueueSize:    len(s.Tracks),
	}
}

func initialStateMessage(s session.Snapshot) *EventMessage {
	return &EventMessage{
		Type:      EventTypeInitialState,
		SessionID: s.SessionID,
		State:     s.State.String(),
		Track:     toTrackInfo(s.Current),
		QueueSize: len(s.Tracks),
	}
}

func toEventMessage(n notification.Notification) *EventMessage {
	ev := n.Event
	m := &EventMessage{
		SequenceNo: n.SequenceNo,
		Type:       ev.Type.String(),
		SessionID:  ev.SessionID,
		State:      ev.State.String(),
		Reason:     ev.Reason.String(),
		Track:      toTrackInfo(ev.Track),
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}
