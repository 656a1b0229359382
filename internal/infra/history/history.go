// Package history stores the tracks each session played in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
)

// Entry is one played track.
type Entry struct {
	SessionID     string
	Title         string
	URL           string
	Duration      time.Duration
	RequesterID   string
	RequesterName string
	PlayedAt      time.Time
}

// Store is a play history backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create history directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}
	// One connection keeps an in-memory database shared and serializes writes
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			requester_id TEXT NOT NULL,
			requester_name TEXT NOT NULL,
			played_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_session_played ON play_history(session_id, played_at);
	`)
	return errors.Wrap(err, "init history schema")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends an entry. A zero PlayedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.PlayedAt.IsZero() {
		e.PlayedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history (session_id, title, url, duration_ms, requester_id, requester_name, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Title, e.URL, e.Duration.Milliseconds(), e.RequesterID, e.RequesterName, e.PlayedAt.UnixMilli())
	return errors.Wrap(err, "record history entry")
}

// Recent returns up to limit entries of a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, title, url, duration_ms, requester_id, requester_name, played_at
		FROM play_history
		WHERE session_id = ?
		ORDER BY played_at DESC, id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var durationMs, playedAt int64
		if err := rows.Scan(&e.SessionID, &e.Title, &e.URL, &durationMs, &e.RequesterID, &e.RequesterName, &playedAt); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.PlayedAt = time.UnixMilli(playedAt)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate history")
}

// Send records started tracks. It makes the store a notification subscriber.
func (s *Store) Send(ctx context.Context, n notification.Notification) error {
	ev := n.Event
	if ev.Type != playback.EventTrackStarted || ev.Track == nil {
		return nil
	}
	err := s.Record(ctx, Entry{
		SessionID:     ev.SessionID,
		Title:         ev.Track.Title,
		URL:           ev.Track.URL,
		Duration:      ev.Track.Duration,
		RequesterID:   ev.Track.Requester.ID,
		RequesterName: ev.Track.Requester.Name,
	})
	if err != nil {
		zlog.Warn().Msgf("history: record failed: session=%s title=%q error=%v", ev.SessionID, ev.Track.Title, err)
	}
	return err
}
