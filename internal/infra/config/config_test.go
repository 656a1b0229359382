package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Discord: DiscordConfig{
			Token:     "test-token",
			Prefix:    "!",
			RateLimit: RateLimitConfig{PerSecond: 1, Burst: 3},
		},
		Admin:    AdminConfig{Addr: ":8080"},
		Playback: PlaybackConfig{EventBuffer: 64, NotifyTimeoutMs: 5000},
		Resolver: ResolverConfig{TimeoutSec: 30, Providers: DefaultProviders()},
		Voice:    VoiceConfig{Bitrate: 128000, FrameBuffer: 100},
		History:  HistoryConfig{Path: "test.db", Limit: 10},
		Spotify:  SpotifyConfig{Market: "US"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing discord token",
			modify:  func(c *Config) { c.Discord.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "admin enabled without token",
			modify:  func(c *Config) { c.Admin.Enabled = true },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name: "admin enabled with token",
			modify: func(c *Config) {
				c.Admin.Enabled = true
				c.Admin.Token = "secret"
			},
		},
		{
			name:    "unknown provider type",
			modify:  func(c *Config) { c.Resolver.Providers = []ProviderConfig{{Type: "soundcloud"}} },
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name: "duplicate provider",
			modify: func(c *Config) {
				c.Resolver.Providers = []ProviderConfig{{Type: "youtube"}, {Type: "youtube"}}
			},
			wantErr: true,
			errMsg:  "configured twice",
		},
		{
			name:    "spotify id without secret",
			modify:  func(c *Config) { c.Spotify.ClientID = "id" },
			wantErr: true,
			errMsg:  "set together",
		},
		{
			name:    "event buffer zero",
			modify:  func(c *Config) { c.Playback.EventBuffer = 0 },
			wantErr: true,
			errMsg:  "EventBuffer",
		},
		{
			name:    "bitrate too low",
			modify:  func(c *Config) { c.Voice.Bitrate = 100 },
			wantErr: true,
			errMsg:  "Bitrate",
		},
		{
			name:    "invalid market",
			modify:  func(c *Config) { c.Spotify.Market = "USA" },
			wantErr: true,
			errMsg:  "Market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("discord:\n  token: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, ":8080", cfg.Admin.Addr)
	assert.Equal(t, 64, cfg.Playback.EventBuffer)
	assert.Equal(t, 30*time.Second, cfg.ResolverTimeout())
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout())
	assert.Equal(t, DefaultProviders(), cfg.Resolver.Providers)
	assert.Equal(t, "Cannot remove the current track! Use !skip instead", cfg.Messages.CurrentTrack)
	assert.False(t, cfg.SpotifyEnabled())
}

func TestParse_KeepsFileValues(t *testing.T) {
	data := []byte(`
discord:
  token: abc
  prefix: "?"
resolver:
  providers:
    - type: ytdlp
filters:
  queue_size:
    enabled: true
    settings:
      max_size: 10
messages:
  no_results: "Nothing found"
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.Discord.Prefix)
	require.Len(t, cfg.Resolver.Providers, 1)
	assert.Equal(t, "ytdlp", cfg.Resolver.Providers[0].Type)
	assert.True(t, cfg.IsFilterEnabled("queue_size"))
	assert.False(t, cfg.IsFilterEnabled("blocked_user"))
	assert.Equal(t, 10, cfg.Filters["queue_size"].Settings["max_size"])
	assert.Equal(t, "Nothing found", cfg.GetMessage("no_results"))
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("ADMIN_TOKEN", "admin-env")
	t.Setenv("SPOTIFY_CLIENT_ID", "id-env")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret-env")

	cfg, err := Parse([]byte("discord:\n  token: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Discord.Token)
	assert.Equal(t, "admin-env", cfg.Admin.Token)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("discord: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("admin:\n  enabled: true\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discord:\n  token: abc\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Discord.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte("discord:\n  token: abc\n"))
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{"current_track", "Cannot remove the current track! Use !skip instead"},
		{"out_of_range", "Position does not exist in queue!"},
		{"not_in_voice", "You need to be in a voice channel!"},
		{"queue_full", "The queue is full."},
		{"already_paused", "Playback is already paused."},
		{"user_pending", "You already have the maximum number of tracks queued."},
		{"unknown_code", "Something went wrong."},
		{"", "Something went wrong."},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.GetMessage(tt.code))
		})
	}
}
