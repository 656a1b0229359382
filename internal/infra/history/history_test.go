package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/track"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.Record(ctx, Entry{
			SessionID: "g1",
			Title:     title,
			URL:       "https://example.com/" + title,
			Duration:  90 * time.Second,
			PlayedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Record(ctx, Entry{SessionID: "g2", Title: "other", PlayedAt: base}))

	entries, err := s.Recent(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Title)
	assert.Equal(t, "second", entries[1].Title)
	assert.Equal(t, 90*time.Second, entries[0].Duration)
	assert.True(t, entries[0].PlayedAt.Equal(base.Add(2*time.Minute)))
}

func TestStore_RecentEmpty(t *testing.T) {
	s := setupStore(t)
	entries, err := s.Recent(context.Background(), "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RecordDefaultsPlayedAt(t *testing.T) {
	s := setupStore(t)
	fixed := time.UnixMilli(1_600_000_000_000)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Record(context.Background(), Entry{SessionID: "g", Title: "t"}))
	entries, err := s.Recent(context.Background(), "g", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].PlayedAt.Equal(fixed))
}

func TestStore_Send(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	tr := track.New(track.Metadata{Title: "Song", URL: "https://example.com/s", Duration: time.Minute},
		track.Requester{ID: "u1", Name: "alice"})

	tests := []struct {
		name string
		ev   playback.Event
	}{
		{"started", playback.Event{Type: playback.EventTrackStarted, SessionID: "g", Track: tr}},
		{"skipped ignored", playback.Event{Type: playback.EventTrackSkipped, SessionID: "g", Track: tr}},
		{"started without track ignored", playback.Event{Type: playback.EventTrackStarted, SessionID: "g"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.Send(ctx, notification.Notification{Event: tt.ev}))
		})
	}

	entries, err := s.Recent(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Song", entries[0].Title)
	assert.Equal(t, "alice", entries[0].RequesterName)
	assert.Equal(t, "u1", entries[0].RequesterID)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{SessionID: "g", Title: "t"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.Recent(context.Background(), "g", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
