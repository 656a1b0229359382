package filter

import (
	"context"
	"slices"
)

// BlockedUserConfig represents the configuration for BlockedUserFilter.
type BlockedUserConfig struct {
	UserIDs []string `yaml:"user_ids" mapstructure:"user_ids"`
}

// BlockedUserFilter rejects requests from blocked users.
type BlockedUserFilter struct {
	config BlockedUserConfig
}

func (f *BlockedUserFilter) Name() string {
	return "blocked_user_filter"
}

func (f *BlockedUserFilter) Description() string {
	return "Rejects requests from users on the block list"
}

func (f *BlockedUserFilter) ReturnCodes() []string {
	return []string{"blocked"}
}

func (f *BlockedUserFilter) ValidateConfig(settings map[string]any) error {
	return decodeSettings(settings, &f.config)
}

func (f *BlockedUserFilter) Check(ctx context.Context, req Request) Result {
	if slices.Contains(f.config.UserIDs, req.Track.Requester.ID) {
		return Reject("blocked")
	}
	return Accept()
}

func init() {
	Register("blocked_user_filter", func() Filter {
		return &BlockedUserFilter{}
	})
}
