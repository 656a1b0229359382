// Package queue provides the per-session ordered playback queue.
//
// The head of a non-empty queue is the track currently bound to the audio
// engine, or about to be bound. Queue is not safe for concurrent use; callers
// hold the owning session's lock for every operation.
package queue

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/domain/track"
)

var (
	// ErrIndex is the kind shared by every position error.
	ErrIndex = errors.New("invalid queue position")
	// ErrCurrentTrack is returned when removing position 1.
	ErrCurrentTrack = errors.Wrap(ErrIndex, "cannot remove the current track")
	// ErrOutOfRange is returned for positions outside [1, size].
	ErrOutOfRange = errors.Wrap(ErrIndex, "position does not exist in queue")
)

// Queue is a FIFO of tracks with position-addressed removal.
type Queue struct {
	tracks []*track.Track
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Add appends t and reports whether the queue was empty before the call.
func (q *Queue) Add(t *track.Track) bool {
	wasEmpty := len(q.tracks) == 0
	q.tracks = append(q.tracks, t)
	return wasEmpty
}

// PeekHead returns the head, or nil when empty.
func (q *Queue) PeekHead() *track.Track {
	if len(q.tracks) == 0 {
		return nil
	}
	return q.tracks[0]
}

// Advance drops the head and returns the new head, or nil when the queue is
// now empty.
func (q *Queue) Advance() *track.Track {
	if len(q.tracks) == 0 {
		return nil
	}
	q.tracks[0] = nil
	q.tracks = q.tracks[1:]
	if len(q.tracks) == 0 {
		q.tracks = nil
		return nil
	}
	return q.tracks[0]
}

// RemoveAt removes the track at a 1-based position in [2, size].
func (q *Queue) RemoveAt(position int) (*track.Track, error) {
	if position < 1 || position > len(q.tracks) {
		return nil, errors.Wrapf(ErrOutOfRange, "position %d (size %d)", position, len(q.tracks))
	}
	if position == 1 {
		return nil, ErrCurrentTrack
	}
	i := position - 1
	removed := q.tracks[i]
	copy(q.tracks[i:], q.tracks[i+1:])
	q.tracks[len(q.tracks)-1] = nil
	q.tracks = q.tracks[:len(q.tracks)-1]
	return removed, nil
}

// Size returns the number of queued tracks, head included.
func (q *Queue) Size() int {
	return len(q.tracks)
}

// IsEmpty reports whether the queue holds no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// HasNext reports whether a track is queued after the head.
func (q *Queue) HasNext() bool {
	return len(q.tracks) > 1
}

// Clear empties the queue.
func (q *Queue) Clear() {
	clear(q.tracks)
	q.tracks = nil
}

// Tracks returns a copy of the queue in play order.
func (q *Queue) Tracks() []*track.Track {
	out := make([]*track.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}
