// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source is an opaque reference to a resolved audio source that has not been
// played yet. Only the audio engine interprets it.
type Source interface {
	// Locator returns the address the engine streams from.
	Locator() string
}

// Requester represents the user who queued the track.
type Requester struct {
	ID   string // Chat platform user ID
	Name string // Display name
}

// Track represents one queued item. A Track is never modified after New
// returns it; queues and the playback controller share it by pointer.
type Track struct {
	ID           string        // Queue entry ID
	Title        string        // Track title
	Duration     time.Duration // Track duration
	ThumbnailURL string        // Thumbnail URL
	URL          string        // Page URL of the source
	Source       Source        // Resolved audio source
	Requester    Requester     // Who requested the track
	AddedAt      time.Time     // Time when resolved
}

// Metadata is what an audio source resolver returns for a query.
type Metadata struct {
	Title        string
	Duration     time.Duration
	ThumbnailURL string
	URL          string
	Source       Source
}

// New builds a Track from resolved metadata.
func New(m Metadata, requester Requester) *Track {
	return &Track{
		ID:           uuid.NewString(),
		Title:        m.Title,
		Duration:     m.Duration,
		ThumbnailURL: m.ThumbnailURL,
		URL:          m.URL,
		Source:       m.Source,
		Requester:    requester,
		AddedAt:      time.Now(),
	}
}

// DurationSeconds returns the duration truncated to whole seconds.
func (t *Track) DurationSeconds() uint {
	if t.Duration <= 0 {
		return 0
	}
	return uint(t.Duration / time.Second)
}

// DurationString renders the duration as m:ss.
func (t *Track) DurationString() string {
	s := t.DurationSeconds()
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
