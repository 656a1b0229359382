// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	Admin    AdminConfig             `yaml:"admin"`
	Playback PlaybackConfig          `yaml:"playback"`
	Resolver ResolverConfig          `yaml:"resolver"`
	Voice    VoiceConfig             `yaml:"voice"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	History  HistoryConfig           `yaml:"history"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Messages MessagesConfig          `yaml:"messages"`
}

// DiscordConfig represents the chat gateway configuration.
type DiscordConfig struct {
	Token     string          `yaml:"token" validate:"required"`
	Prefix    string          `yaml:"prefix" default:"!" validate:"required,max=5"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits commands per user.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" default:"1" validate:"gt=0"`
	Burst     int     `yaml:"burst" default:"3" validate:"gte=1"`
}

// AdminConfig represents the admin HTTP API configuration.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":8080"`
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
}

// PlaybackConfig represents playback event configuration.
type PlaybackConfig struct {
	EventBuffer     int `yaml:"event_buffer" default:"64" validate:"gte=1"`
	NotifyTimeoutMs int `yaml:"notify_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
}

// ResolverConfig represents audio source resolution configuration.
type ResolverConfig struct {
	TimeoutSec int              `yaml:"timeout_sec" default:"30" validate:"gte=1"`
	Providers  []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string `yaml:"type" validate:"required,oneof=youtube ytmusic ytdlp"`
	DisplayName string `yaml:"display_name"`
}

// VoiceConfig represents the audio engine configuration.
type VoiceConfig struct {
	Bitrate     int `yaml:"bitrate" default:"128000" validate:"gte=8000,lte=512000"`
	FrameBuffer int `yaml:"frame_buffer" default:"100" validate:"gte=1"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// HistoryConfig represents the play history store configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"19voice.db"`
	Limit   int    `yaml:"limit" default:"10" validate:"gte=1,lte=50"`
}

// SpotifyConfig represents Spotify API configuration. Spotify links are only
// accepted when both credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"Something went wrong."`
	NoResults             string `yaml:"no_results" default:"No results found."`
	ResolveFailed         string `yaml:"resolve_failed" default:"Could not load that track."`
	CurrentTrack          string `yaml:"current_track" default:"Cannot remove the current track! Use !skip instead"`
	OutOfRange            string `yaml:"out_of_range" default:"Position does not exist in queue!"`
	NotPlaying            string `yaml:"not_playing" default:"Nothing is playing."`
	NotPaused             string `yaml:"not_paused" default:"Playback is not paused."`
	AlreadyPaused         string `yaml:"already_paused" default:"Playback is already paused."`
	InvalidState          string `yaml:"invalid_state" default:"That cannot be done right now."`
	EngineError           string `yaml:"engine_error" default:"Playback failed and the queue was cleared."`
	NotInVoice            string `yaml:"not_in_voice" default:"You need to be in a voice channel!"`
	RateLimited           string `yaml:"rate_limited" default:"Slow down a little."`
	UserPending           string `yaml:"user_pending" default:"You already have the maximum number of tracks queued."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That track is already in the queue."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That track is too long or too short."`
	QueueFull             string `yaml:"queue_full" default:"The queue is full."`
	Blocked               string `yaml:"blocked" default:"You are not allowed to queue tracks."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies environment overrides and
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Resolver.Providers) == 0 {
		cfg.Resolver.Providers = DefaultProviders()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// DefaultProviders returns the search provider order used when none is
// configured.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Type: "youtube", DisplayName: "YouTube"},
		{Type: "ytmusic", DisplayName: "YouTube Music"},
		{Type: "ytdlp", DisplayName: "yt-dlp"},
	}
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "no_results":
		return c.Messages.NoResults
	case "resolve_failed":
		return c.Messages.ResolveFailed
	case "current_track":
		return c.Messages.CurrentTrack
	case "out_of_range":
		return c.Messages.OutOfRange
	case "not_playing":
		return c.Messages.NotPlaying
	case "not_paused":
		return c.Messages.NotPaused
	case "already_paused":
		return c.Messages.AlreadyPaused
	case "invalid_state":
		return c.Messages.InvalidState
	case "engine_error":
		return c.Messages.EngineError
	case "not_in_voice":
		return c.Messages.NotInVoice
	case "rate_limited":
		return c.Messages.RateLimited
	case "user_pending":
		return c.Messages.UserPending
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "queue_full":
		return c.Messages.QueueFull
	case "blocked":
		return c.Messages.Blocked
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool)
	for _, p := range c.Resolver.Providers {
		if seen[p.Type] {
			return errors.Newf("search provider %s configured twice", p.Type)
		}
		seen[p.Type] = true
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return errors.New("spotify client_id and client_secret must be set together")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// ResolverTimeout returns the resolver timeout as a duration.
func (c *Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSec) * time.Second
}

// NotifyTimeout returns the per-subscriber notification timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Playback.NotifyTimeoutMs) * time.Millisecond
}
