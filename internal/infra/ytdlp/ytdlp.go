// Package ytdlp resolves, searches and streams audio through the yt-dlp
// executable.
package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/resolver"
	"github.com/osa030/19voice/internal/domain/track"
)

const (
	metadataFormat = "%(title)s\t%(uploader)s\t%(duration)s\t%(id)s\t%(thumbnail)s\t%(webpage_url)s"
	searchFormat   = "%(url)s\t%(title)s\t%(uploader)s\t%(duration)s"
	audioFormat    = "bestaudio[ext=webm]/bestaudio"
)

// Source is a page URL yt-dlp can stream audio from.
type Source struct {
	URL string
}

// Locator returns the page URL.
func (s Source) Locator() string { return s.URL }

// Client runs yt-dlp. It serves as the metadata extractor and as the
// "ytdlp" search provider.
type Client struct{}

// New creates a yt-dlp client.
func New() *Client {
	return &Client{}
}

// Name returns the provider name.
func (c *Client) Name() string { return "ytdlp" }

// Extract resolves a page URL into track metadata.
func (c *Client) Extract(ctx context.Context, url string) (track.Metadata, error) {
	res, err := ytdlp.New().
		Print(metadataFormat).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", url)
	if err != nil {
		return track.Metadata{}, errors.Wrapf(err, "yt-dlp metadata for %s", url)
	}

	m, err := parseMetadata(res.Stdout)
	if err != nil {
		return track.Metadata{}, errors.Wrapf(err, "yt-dlp metadata for %s", url)
	}
	if m.URL == "" {
		m.URL = url
	}
	m.Source = Source{URL: m.URL}
	zlog.Debug().Msgf("ytdlp: extracted: url=%s title=%q duration=%s", m.URL, m.Title, m.Duration)
	return m, nil
}

// Search runs a yt-dlp YouTube search and returns up to limit hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]resolver.Hit, error) {
	if limit <= 0 {
		limit = 1
	}
	res, err := ytdlp.New().
		FlatPlaylist().
		Print(searchFormat).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, errors.Wrap(err, "yt-dlp search")
	}
	return parseSearch(res.Stdout, limit), nil
}

// Stream writes the best audio stream of url to out until the stream ends,
// ctx is cancelled or out stops accepting data.
func Stream(ctx context.Context, url string, out io.Writer) error {
	cmd := ytdlp.New().
		Format(audioFormat).
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckFormats().
		NoWarnings().
		IgnoreConfig().
		BuildCommand(ctx, url)

	cmd.Stdout = out
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start yt-dlp")
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// The reader closing first shows up as a broken pipe
		msg := strings.ToLower(stderr.String())
		if strings.Contains(err.Error(), "exit status 1") || strings.Contains(msg, "broken pipe") {
			return nil
		}
		return errors.Wrapf(err, "yt-dlp stream: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// parseMetadata parses the first complete line printed with metadataFormat.
func parseMetadata(stdout string) (track.Metadata, error) {
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 6 {
			continue
		}
		return track.Metadata{
			Title:        ps[0],
			Duration:     parseDuration(ps[2]),
			ThumbnailURL: naToEmpty(ps[4]),
			URL:          naToEmpty(ps[5]),
		}, nil
	}
	return track.Metadata{}, errors.New("failed to parse metadata")
}

func parseSearch(stdout string, limit int) []resolver.Hit {
	hits := make([]resolver.Hit, 0, limit)
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 || naToEmpty(ps[0]) == "" {
			continue
		}
		hits = append(hits, resolver.Hit{URL: ps[0], Title: ps[1]})
		if len(hits) == limit {
			break
		}
	}
	return hits
}

// parseDuration parses yt-dlp's seconds field. Live streams print NA.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s) + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}
