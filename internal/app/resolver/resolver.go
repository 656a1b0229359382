package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/domain/track"
)

var (
	// ErrResolve is the kind of every error returned by Resolve.
	ErrResolve = errors.New("could not resolve source")
	// ErrNoResults is returned when no search provider found anything.
	ErrNoResults = errors.Wrap(ErrResolve, "no results")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.Wrap(ErrResolve, "empty query")
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    SearchProvider
	DisplayName string
}

// Resolver resolves URLs directly and search text through a chain of search
// providers tried in order.
type Resolver struct {
	extractor   Extractor
	providers   []ProviderWithMetadata
	translators []LinkTranslator
	timeout     time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTranslators adds link translators consulted before extraction.
func WithTranslators(ts ...LinkTranslator) Option {
	return func(r *Resolver) {
		r.translators = append(r.translators, ts...)
	}
}

// WithTimeout bounds a whole Resolve call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// New creates a resolver.
func New(extractor Extractor, providers []ProviderWithMetadata, opts ...Option) *Resolver {
	r := &Resolver{
		extractor: extractor,
		providers: providers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsURL reports whether a query is treated as a link rather than search text.
func IsURL(query string) bool {
	return strings.HasPrefix(query, "http")
}

// Resolve turns a query into metadata. Every error it returns is marked
// ErrResolve.
func (r *Resolver) Resolve(ctx context.Context, query string) (track.Metadata, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return track.Metadata{}, ErrEmptyQuery
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if IsURL(query) {
		for _, t := range r.translators {
			if !t.Matches(query) {
				continue
			}
			text, err := t.Translate(ctx, query)
			if err != nil {
				return track.Metadata{}, errors.Mark(errors.Wrapf(err, "%s link", t.Name()), ErrResolve)
			}
			zlog.Debug().Msgf("resolver: link translated: translator=%s query=%q", t.Name(), text)
			return r.search(ctx, text)
		}
		return r.extract(ctx, query)
	}
	return r.search(ctx, query)
}

// Search returns up to limit hits from the first provider that has any.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	for i, pm := range r.providers {
		zlog.Debug().Msgf("trying search provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(r.providers), pm.DisplayName, pm.Provider.Name())

		hits, err := pm.Provider.Search(ctx, query, limit)
		if err != nil {
			zlog.Warn().Msgf("search provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}
		if len(hits) == 0 {
			zlog.Debug().Msgf("search provider returned no hits: provider=%s", pm.DisplayName)
			continue
		}
		zlog.Info().Msgf("search provider returned hits: provider=%s count=%d query=%q", pm.DisplayName, len(hits), query)
		return hits, nil
	}
	return nil, errors.Wrapf(ErrNoResults, "query %q", query)
}

func (r *Resolver) search(ctx context.Context, query string) (track.Metadata, error) {
	hits, err := r.Search(ctx, query, 1)
	if err != nil {
		return track.Metadata{}, err
	}
	return r.extract(ctx, hits[0].URL)
}

func (r *Resolver) extract(ctx context.Context, url string) (track.Metadata, error) {
	m, err := r.extractor.Extract(ctx, url)
	if err != nil {
		return track.Metadata{}, errors.Mark(errors.Wrapf(err, "extract %s", url), ErrResolve)
	}
	if m.URL == "" {
		m.URL = url
	}
	if m.Source == nil {
		return track.Metadata{}, errors.Mark(errors.Newf("no audio source for %s", url), ErrResolve)
	}
	return m, nil
}
