// Package spotify translates Spotify track links into search text. Spotify
// serves no audio to third parties, so a linked track is looked up by its
// catalogue metadata and played from a search provider instead.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// trackAPI is the part of the Spotify client the translator uses.
type trackAPI interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
}

// Client is a Spotify API client authenticated with client credentials.
type Client struct {
	api        trackAPI
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	// App-only token; no user scopes are needed to read the catalogue
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := creds.Client(ctx)

	return newWithAPI(spotify.New(httpClient), cfg.Market), nil
}

func newWithAPI(api trackAPI, market string) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		api:        api,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Name returns the translator name.
func (c *Client) Name() string { return "spotify" }

// Matches reports whether url is a Spotify track link or URI.
func (c *Client) Matches(url string) bool {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "spotify:track:") {
		return true
	}
	return strings.Contains(url, "open.spotify.com") && strings.Contains(url, "/track/")
}

// Translate looks the linked track up and returns "artist - title" search
// text for it.
func (c *Client) Translate(ctx context.Context, url string) (string, error) {
	id := extractTrackID(url)
	if id == "" {
		return "", errors.Newf("no track id in %q", url)
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.api.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get spotify track %s", id)
	}

	query := searchText(result)
	zlog.Debug().Msgf("spotify: translated link: id=%s query=%q", id, query)
	return query, nil
}

// searchText renders a track as "artist, artist - title".
func searchText(t *spotify.FullTrack) string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return t.Name
	}
	return strings.Join(names, ", ") + " - " + t.Name
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.CombineErrors(ctx.Err(), lastErr)
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	// spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return ""
}
