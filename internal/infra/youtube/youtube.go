// Package youtube provides the YouTube and YouTube Music search providers.
package youtube

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"

	"github.com/osa030/19voice/internal/app/resolver"
)

const (
	videoBaseURL = "https://www.youtube.com/watch?v="
	musicBaseURL = "https://music.youtube.com/watch?v="
)

// VideoSearch searches YouTube videos.
type VideoSearch struct {
	client *ytsearch.Client
}

// NewVideoSearch creates the "youtube" provider.
func NewVideoSearch() *VideoSearch {
	return &VideoSearch{client: ytsearch.NewClient(nil)}
}

// Name returns the provider name.
func (s *VideoSearch) Name() string { return "youtube" }

// Search returns up to limit video hits.
func (s *VideoSearch) Search(ctx context.Context, query string, limit int) ([]resolver.Hit, error) {
	r, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "youtube search")
	}

	c := newCollector(videoBaseURL, limit)
	for _, v := range r.Results {
		if c.add(v.VideoID, v.Title, "") {
			break
		}
	}
	return c.hits, nil
}

// MusicSearch searches YouTube Music tracks.
type MusicSearch struct{}

// NewMusicSearch creates the "ytmusic" provider.
func NewMusicSearch() *MusicSearch {
	return &MusicSearch{}
}

// Name returns the provider name.
func (s *MusicSearch) Name() string { return "ytmusic" }

// Search returns up to limit track hits. The underlying client takes no
// context, so the call is abandoned when ctx ends.
func (s *MusicSearch) Search(ctx context.Context, query string, limit int) ([]resolver.Hit, error) {
	type result struct {
		hits []resolver.Hit
		err  error
	}
	done := make(chan result, 1)

	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			done <- result{err: errors.Wrap(err, "ytmusic search")}
			return
		}
		c := newCollector(musicBaseURL, limit)
		for _, v := range r.Tracks {
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			if c.add(v.VideoID, v.Title, artist) {
				break
			}
		}
		done <- result{hits: c.hits}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "ytmusic search")
	case r := <-done:
		return r.hits, r.err
	}
}

// collector dedupes hits by video ID and stops at the limit.
type collector struct {
	baseURL string
	limit   int
	seen    map[string]bool
	hits    []resolver.Hit
}

func newCollector(baseURL string, limit int) *collector {
	if limit <= 0 {
		limit = 1
	}
	return &collector{baseURL: baseURL, limit: limit, seen: make(map[string]bool)}
}

// add records a hit and reports whether the limit is reached.
func (c *collector) add(videoID, title, artist string) bool {
	videoID = strings.TrimSpace(videoID)
	if videoID != "" && !c.seen[videoID] {
		c.seen[videoID] = true
		if artist != "" {
			title = artist + " - " + title
		}
		c.hits = append(c.hits, resolver.Hit{URL: c.baseURL + videoID, Title: title})
	}
	return len(c.hits) >= c.limit
}
