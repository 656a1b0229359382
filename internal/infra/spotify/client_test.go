package spotify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

type fakeAPI struct {
	calls  int
	errs   []error
	track  *spotify.FullTrack
	lastID spotify.ID
}

func (f *fakeAPI) GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error) {
	f.calls++
	f.lastID = id
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.track, nil
}

func fullTrack(name string, artists ...string) *spotify.FullTrack {
	t := &spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{Name: name}}
	for _, a := range artists {
		t.Artists = append(t.Artists, spotify.SimpleArtist{Name: a})
	}
	return t
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "intl URL",
			input:    "https://open.spotify.com/intl-ja/track/abc123/",
			expected: "abc123",
		},
		{
			name:     "playlist URL",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTrackID(tt.input))
		})
	}
}

func TestClient_Matches(t *testing.T) {
	c := newWithAPI(&fakeAPI{}, "")
	assert.True(t, c.Matches("https://open.spotify.com/track/abc"))
	assert.True(t, c.Matches("spotify:track:abc"))
	assert.False(t, c.Matches("https://open.spotify.com/album/abc"))
	assert.False(t, c.Matches("https://www.youtube.com/watch?v=abc"))
	assert.Equal(t, "spotify", c.Name())
}

func TestClient_Translate(t *testing.T) {
	api := &fakeAPI{track: fullTrack("Bohemian Rhapsody", "Queen")}
	c := newWithAPI(api, "JP")

	got, err := c.Translate(context.Background(), "https://open.spotify.com/track/abc?si=1")
	require.NoError(t, err)
	assert.Equal(t, "Queen - Bohemian Rhapsody", got)
	assert.Equal(t, spotify.ID("abc"), api.lastID)
}

func TestClient_Translate_Errors(t *testing.T) {
	t.Run("no track id", func(t *testing.T) {
		c := newWithAPI(&fakeAPI{}, "")
		_, err := c.Translate(context.Background(), "https://open.spotify.com/album/abc")
		assert.Error(t, err)
	})

	t.Run("not retryable", func(t *testing.T) {
		api := &fakeAPI{errs: []error{errors.New("404 not found")}}
		c := newWithAPI(api, "")
		_, err := c.Translate(context.Background(), "spotify:track:abc")
		assert.Error(t, err)
		assert.Equal(t, 1, api.calls)
	})

	t.Run("retry then success", func(t *testing.T) {
		api := &fakeAPI{
			errs:  []error{errors.New("503 Service Unavailable")},
			track: fullTrack("Song", "A", "B"),
		}
		c := newWithAPI(api, "")
		c.retryDelay = time.Millisecond
		got, err := c.Translate(context.Background(), "spotify:track:abc")
		require.NoError(t, err)
		assert.Equal(t, "A, B - Song", got)
		assert.Equal(t, 2, api.calls)
	})
}

func TestSearchText(t *testing.T) {
	assert.Equal(t, "Song", searchText(fullTrack("Song")))
	assert.Equal(t, "X - Song", searchText(fullTrack("Song", "", "X")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}
