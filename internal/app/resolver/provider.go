// Package resolver turns a URL or search text into playable track metadata.
package resolver

import (
	"context"

	"github.com/osa030/19voice/internal/domain/track"
)

// Hit is one search result.
type Hit struct {
	URL   string
	Title string
}

// SearchProvider finds source pages for free-text queries.
type SearchProvider interface {
	// Search returns up to limit hits, best first.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	// Name returns the provider name (used in config).
	Name() string
}

// Extractor resolves a source page URL into metadata and a source handle.
type Extractor interface {
	Extract(ctx context.Context, url string) (track.Metadata, error)
}

// LinkTranslator rewrites links the extractor cannot stream (for example
// catalogue links without audio) into search text.
type LinkTranslator interface {
	Matches(url string) bool
	Translate(ctx context.Context, url string) (string, error)
	Name() string
}
