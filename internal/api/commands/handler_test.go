package commands

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/queue"
	"github.com/osa030/19voice/internal/app/resolver"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/history"
)

const (
	guildID   = snowflake.ID(100)
	channelID = snowflake.ID(200)
	userID    = snowflake.ID(300)
	voiceID   = snowflake.ID(400)
)

type fakeSessions struct {
	playQuery  string
	playResult *session.PlayResult
	skipResult *session.SkipResult
	removed    *track.Track
	current    *track.Track
	queued     []*track.Track
	snapshot   session.Snapshot
	err        error
	position   int
	stopped    bool
}

func (f *fakeSessions) OnPlay(ctx context.Context, sessionID, channelID, query string, requester track.Requester) (*session.PlayResult, error) {
	f.playQuery = query
	return f.playResult, f.err
}

func (f *fakeSessions) OnSkip(ctx context.Context, sessionID string) (*session.SkipResult, error) {
	return f.skipResult, f.err
}

func (f *fakeSessions) OnRemove(ctx context.Context, sessionID string, position int) (*track.Track, error) {
	f.position = position
	return f.removed, f.err
}

func (f *fakeSessions) OnPause(ctx context.Context, sessionID string) (*track.Track, error) {
	return f.current, f.err
}

func (f *fakeSessions) OnUnpause(ctx context.Context, sessionID string) (*track.Track, error) {
	return f.current, f.err
}

func (f *fakeSessions) OnStop(ctx context.Context, sessionID string) error {
	f.stopped = f.err == nil
	return f.err
}

func (f *fakeSessions) ListQueue(sessionID string) []*track.Track  { return f.queued }
func (f *fakeSessions) Snapshot(sessionID string) session.Snapshot { return f.snapshot }

type fakeVoice struct {
	sessionID string
	channelID snowflake.ID
}

func (v *fakeVoice) SetChannel(sessionID string, channelID snowflake.ID) {
	v.sessionID = sessionID
	v.channelID = channelID
}

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (h *fakeHistory) Recent(ctx context.Context, sessionID string, limit int) ([]history.Entry, error) {
	return h.entries, h.err
}

type stubMessages map[string]string

func (m stubMessages) GetMessage(code string) string {
	if v, ok := m[code]; ok {
		return v
	}
	return "default:" + code
}

func newTrack(title string, d time.Duration) *track.Track {
	return track.New(track.Metadata{Title: title, Duration: d}, track.Requester{ID: "300", Name: "alice"})
}

func newTestHandler(s *fakeSessions, v *fakeVoice, h HistoryReader) *Handler {
	handler := NewHandler(Config{Prefix: "!", RatePerSec: 100, RateBurst: 100}, s, v, h, stubMessages{
		"not_in_voice":  "You need to be in a voice channel!",
		"current_track": "Cannot remove the current track! Use !skip instead",
		"rate_limited":  "Slow down a little.",
	})
	fixed := time.Unix(1_700_000_000, 0)
	handler.now = func() time.Time { return fixed }
	return handler
}

func message(content string) Message {
	return Message{
		GuildID:        guildID,
		ChannelID:      channelID,
		AuthorID:       userID,
		AuthorName:     "alice",
		Content:        content,
		VoiceChannelID: voiceID,
	}
}

func firstEmbed(t *testing.T, m *discord.MessageCreate) discord.Embed {
	t.Helper()
	require.NotNil(t, m)
	require.Len(t, m.Embeds, 1)
	return m.Embeds[0]
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content  string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"!play never gonna give you up", "play", "never gonna give you up", true},
		{"  !SKIP  ", "skip", "", true},
		{"!remove   3", "remove", "3", true},
		{"hello", "", "", false},
		{"!", "", "", false},
		{"?play x", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := parseCommand("!", tt.content)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestHandler_IgnoresNonCommands(t *testing.T) {
	h := newTestHandler(&fakeSessions{}, &fakeVoice{}, nil)
	assert.Nil(t, h.Handle(context.Background(), message("just chatting")))
	assert.Nil(t, h.Handle(context.Background(), message("!dance")))
}

func TestHandler_Play(t *testing.T) {
	t.Run("starts playing", func(t *testing.T) {
		tr := newTrack("Song", 65*time.Second)
		s := &fakeSessions{playResult: &session.PlayResult{Track: tr, Started: true, Position: 1}}
		v := &fakeVoice{}
		h := newTestHandler(s, v, nil)

		e := firstEmbed(t, h.Handle(context.Background(), message("!play some song")))
		assert.Equal(t, "Now playing", e.Title)
		assert.Equal(t, "Song", e.Fields[0].Value)
		assert.Equal(t, "1:05", e.Fields[1].Value)
		assert.Equal(t, "some song", s.playQuery)
		assert.Equal(t, "100", v.sessionID)
		assert.Equal(t, voiceID, v.channelID)
	})

	t.Run("queued", func(t *testing.T) {
		tr := newTrack("Later", 10*time.Minute)
		s := &fakeSessions{playResult: &session.PlayResult{Track: tr, Position: 3}}
		h := newTestHandler(s, &fakeVoice{}, nil)

		e := firstEmbed(t, h.Handle(context.Background(), message("!play later")))
		assert.Equal(t, "Added to queue", e.Title)
		assert.Equal(t, "10:00", e.Fields[1].Value)
		assert.Equal(t, "3", e.Fields[2].Value)
	})

	t.Run("missing query", func(t *testing.T) {
		h := newTestHandler(&fakeSessions{}, &fakeVoice{}, nil)
		m := h.Handle(context.Background(), message("!play"))
		require.NotNil(t, m)
		assert.Equal(t, "You need to provide a link or search query!", m.Content)
	})

	t.Run("not in voice", func(t *testing.T) {
		s := &fakeSessions{}
		h := newTestHandler(s, &fakeVoice{}, nil)
		msg := message("!play x")
		msg.VoiceChannelID = 0
		m := h.Handle(context.Background(), msg)
		require.NotNil(t, m)
		assert.Equal(t, "You need to be in a voice channel!", m.Content)
		assert.Empty(t, s.playQuery)
	})

	t.Run("rejected by filter", func(t *testing.T) {
		s := &fakeSessions{err: &session.RejectedError{Code: "queue_full"}}
		h := newTestHandler(s, &fakeVoice{}, nil)
		m := h.Handle(context.Background(), message("!play x"))
		require.NotNil(t, m)
		assert.Equal(t, "default:queue_full", m.Content)
	})

	t.Run("no results", func(t *testing.T) {
		s := &fakeSessions{err: errors.Wrap(resolver.ErrNoResults, "search")}
		h := newTestHandler(s, &fakeVoice{}, nil)
		m := h.Handle(context.Background(), message("!play x"))
		require.NotNil(t, m)
		assert.Equal(t, "default:no_results", m.Content)
	})
}

func TestHandler_Skip(t *testing.T) {
	skipped := newTrack("Old", time.Minute)
	next := newTrack("New", 2*time.Minute)

	t.Run("to next", func(t *testing.T) {
		h := newTestHandler(&fakeSessions{skipResult: &session.SkipResult{Skipped: skipped, Next: next}}, &fakeVoice{}, nil)
		e := firstEmbed(t, h.Handle(context.Background(), message("!skip")))
		assert.Equal(t, "Now playing", e.Title)
		assert.Equal(t, "New", e.Fields[0].Value)
	})

	t.Run("queue ended", func(t *testing.T) {
		h := newTestHandler(&fakeSessions{skipResult: &session.SkipResult{Skipped: skipped}}, &fakeVoice{}, nil)
		e := firstEmbed(t, h.Handle(context.Background(), message("!skip")))
		assert.Equal(t, "Queue ended", e.Title)
	})

	t.Run("not playing", func(t *testing.T) {
		h := newTestHandler(&fakeSessions{err: playback.ErrNotPlaying}, &fakeVoice{}, nil)
		m := h.Handle(context.Background(), message("!skip"))
		require.NotNil(t, m)
		assert.Equal(t, "default:not_playing", m.Content)
	})
}

func TestHandler_Remove(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		sessions    *fakeSessions
		wantContent string
		wantTitle   string
		wantPos     int
	}{
		{
			name:        "missing position",
			content:     "!remove",
			sessions:    &fakeSessions{},
			wantContent: "You need to provide a queue position",
		},
		{
			name:        "not a number",
			content:     "!remove two",
			sessions:    &fakeSessions{},
			wantContent: "Queue position must be a number",
		},
		{
			name:        "current track",
			content:     "!remove 1",
			sessions:    &fakeSessions{err: queue.ErrCurrentTrack},
			wantContent: "Cannot remove the current track! Use !skip instead",
			wantPos:     1,
		},
		{
			name:        "out of range",
			content:     "!remove 9",
			sessions:    &fakeSessions{err: errors.Wrap(queue.ErrOutOfRange, "position 9")},
			wantContent: "default:out_of_range",
			wantPos:     9,
		},
		{
			name:      "removed",
			content:   "!remove 2",
			sessions:  &fakeSessions{removed: newTrack("Gone", time.Minute)},
			wantTitle: "Removed from queue",
			wantPos:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.sessions, &fakeVoice{}, nil)
			m := h.Handle(context.Background(), message(tt.content))
			require.NotNil(t, m)
			assert.Equal(t, tt.wantPos, tt.sessions.position)
			if tt.wantTitle != "" {
				e := firstEmbed(t, m)
				assert.Equal(t, tt.wantTitle, e.Title)
				assert.Equal(t, "Gone", e.Description)
				return
			}
			assert.Equal(t, tt.wantContent, m.Content)
		})
	}
}

func TestHandler_PauseUnpauseStop(t *testing.T) {
	cur := newTrack("Current", time.Minute)
	s := &fakeSessions{current: cur}
	h := newTestHandler(s, &fakeVoice{}, nil)

	e := firstEmbed(t, h.Handle(context.Background(), message("!pause")))
	assert.Equal(t, "Paused", e.Title)
	assert.Equal(t, "Current", e.Description)

	e = firstEmbed(t, h.Handle(context.Background(), message("!unpause")))
	assert.Equal(t, "Unpaused", e.Title)

	e = firstEmbed(t, h.Handle(context.Background(), message("!stop")))
	assert.Equal(t, "Stopped", e.Title)
	assert.True(t, s.stopped)

	s.err = playback.ErrNotPaused
	m := h.Handle(context.Background(), message("!unpause"))
	require.NotNil(t, m)
	assert.Equal(t, "default:not_paused", m.Content)
}

func TestHandler_Queue(t *testing.T) {
	s := &fakeSessions{queued: []*track.Track{
		newTrack("One", 65*time.Second),
		newTrack("Two", 3*time.Second),
	}}
	h := newTestHandler(s, &fakeVoice{}, nil)

	e := firstEmbed(t, h.Handle(context.Background(), message("!queue")))
	assert.Equal(t, "Queue", e.Title)
	assert.Equal(t, "1: One [1:05]\n2: Two [0:03]", e.Description)

	s.queued = nil
	e = firstEmbed(t, h.Handle(context.Background(), message("!queue")))
	assert.Equal(t, "The queue is empty.", e.Description)
}

func TestHandler_NowPlaying(t *testing.T) {
	s := &fakeSessions{}
	h := newTestHandler(s, &fakeVoice{}, nil)

	m := h.Handle(context.Background(), message("!np"))
	require.NotNil(t, m)
	assert.Equal(t, "default:not_playing", m.Content)

	s.snapshot = session.Snapshot{State: playback.StatePaused, Current: newTrack("Held", time.Minute)}
	e := firstEmbed(t, h.Handle(context.Background(), message("!np")))
	assert.Equal(t, "Paused", e.Title)
	assert.Equal(t, "Held", e.Fields[0].Value)
}

func TestHandler_History(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(&fakeSessions{}, &fakeVoice{}, nil)
		m := h.Handle(context.Background(), message("!history"))
		require.NotNil(t, m)
		assert.Equal(t, "History is not enabled.", m.Content)
	})

	t.Run("entries", func(t *testing.T) {
		hist := &fakeHistory{entries: []history.Entry{{Title: "Played", RequesterName: "bob"}}}
		h := newTestHandler(&fakeSessions{}, &fakeVoice{}, hist)
		e := firstEmbed(t, h.Handle(context.Background(), message("!history")))
		assert.Equal(t, "1: Played (bob)", e.Description)
	})

	t.Run("lookup failure", func(t *testing.T) {
		hist := &fakeHistory{err: errors.New("disk gone")}
		h := newTestHandler(&fakeSessions{}, &fakeVoice{}, hist)
		m := h.Handle(context.Background(), message("!history"))
		require.NotNil(t, m)
		assert.Equal(t, "default:internal_error", m.Content)
	})
}

func TestHandler_Help(t *testing.T) {
	h := newTestHandler(&fakeSessions{}, &fakeVoice{}, nil)
	e := firstEmbed(t, h.Handle(context.Background(), message("!help")))
	assert.Equal(t, "Help", e.Title)
	require.Len(t, e.Fields, len(helpEntries))
	assert.Equal(t, "!play", e.Fields[0].Name)
}

func TestHandler_RateLimit(t *testing.T) {
	h := NewHandler(Config{Prefix: "!", RatePerSec: 0.001, RateBurst: 1}, &fakeSessions{}, &fakeVoice{}, nil, stubMessages{"rate_limited": "Slow down a little."})

	first := h.Handle(context.Background(), message("!help"))
	require.NotNil(t, first)
	assert.Len(t, first.Embeds, 1)

	second := h.Handle(context.Background(), message("!help"))
	require.NotNil(t, second)
	assert.Equal(t, "Slow down a little.", second.Content)

	other := message("!help")
	other.AuthorID = snowflake.ID(999)
	assert.Len(t, h.Handle(context.Background(), other).Embeds, 1)
}
