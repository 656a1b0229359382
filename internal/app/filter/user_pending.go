package filter

import (
	"context"
	"slices"
)

// UserPendingConfig represents the configuration for UserPendingFilter.
type UserPendingConfig struct {
	MaxPending int      `yaml:"max_pending" mapstructure:"max_pending" default:"3" validate:"gte=1"`
	Exempt     []string `yaml:"exempt" mapstructure:"exempt"`
}

// UserPendingFilter limits how many tracks one requester may have waiting.
type UserPendingFilter struct {
	config UserPendingConfig
}

func (f *UserPendingFilter) Name() string {
	return "user_pending_filter"
}

func (f *UserPendingFilter) Description() string {
	return "Checks how many tracks the requester has waiting to be played"
}

func (f *UserPendingFilter) ReturnCodes() []string {
	return []string{"user_pending"}
}

func (f *UserPendingFilter) ValidateConfig(settings map[string]any) error {
	return decodeSettings(settings, &f.config)
}

func (f *UserPendingFilter) Check(ctx context.Context, req Request) Result {
	requester := req.Track.Requester.ID
	if slices.Contains(f.config.Exempt, requester) {
		return Accept()
	}

	limit := f.config.MaxPending
	if limit <= 0 {
		return Accept()
	}
	pending := 0
	// The head is already playing and does not count as pending.
	for i, queued := range req.Queued {
		if i > 0 && queued.Requester.ID == requester {
			pending++
		}
	}
	if pending >= limit {
		return Reject("user_pending")
	}
	return Accept()
}

func init() {
	Register("user_pending_filter", func() Filter {
		return &UserPendingFilter{}
	})
}
