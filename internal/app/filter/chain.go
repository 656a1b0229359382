package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Settings enables a filter and carries its raw settings.
type Settings struct {
	Enabled  bool
	Settings map[string]any
}

// Build creates a chain from the registered filters that are enabled in
// configs, in name order. A filter whose settings fail validation is an error.
func Build(configs map[string]Settings) (*Chain, error) {
	c := NewChain()
	for _, name := range Names() {
		cfg, ok := configs[name]
		if !ok || !cfg.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		zlog.Info().Msgf("filter enabled: name=%s", name)
		c.Add(f)
	}
	for name := range configs {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
func (c *Chain) Execute(ctx context.Context, req Request) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, req)
		if !result.Accepted {
			zlog.Debug().Msgf("filter rejected request: filter=%s code=%s title=%q", f.Name(), result.Code, req.Track.Title)
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
