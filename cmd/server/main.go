// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/19voice/internal/api/commands"
	apiconnect "github.com/osa030/19voice/internal/api/connect"
	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/resolver"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/infra/audio"
	"github.com/osa030/19voice/internal/infra/config"
	"github.com/osa030/19voice/internal/infra/history"
	"github.com/osa030/19voice/internal/infra/logger"
	"github.com/osa030/19voice/internal/infra/spotify"
	"github.com/osa030/19voice/internal/infra/youtube"
	"github.com/osa030/19voice/internal/infra/ytdlp"
)

var (
	app        = kingpin.New("19voice-server", "19voice Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run bot (defer ensures shutdown steps run on any exit)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	chain, err := buildFilterChain(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	res, err := buildResolver(ctx, cfg)
	if err != nil {
		return err
	}

	discordBot, err := commands.NewBot(cfg.Discord.Token, cfg.Discord.Prefix)
	if err != nil {
		return err
	}
	engine := audio.NewEngine(audio.Config{
		Bitrate:     cfg.Voice.Bitrate,
		FrameBuffer: cfg.Voice.FrameBuffer,
	}, audio.NewDisgoConnFactory(discordBot.VoiceManager()))

	notifManager := notification.NewManager(cfg.NotifyTimeout())
	sessionMgr := session.NewManager(
		session.Config{EventBuffer: cfg.Playback.EventBuffer},
		engine,
		res,
		chain,
		notifManager,
	)

	var hist commands.HistoryReader
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		notifManager.Subscribe("history", store)
		hist = store
		zlog.Info().Msgf("Play history enabled: path=%s", cfg.History.Path)
	}
	notifManager.Subscribe("announcer", commands.NewAnnouncer(discordBot, sessionMgr))

	handler := commands.NewHandler(commands.Config{
		Prefix:       cfg.Discord.Prefix,
		RatePerSec:   cfg.Discord.RateLimit.PerSecond,
		RateBurst:    cfg.Discord.RateLimit.Burst,
		HistoryLimit: cfg.History.Limit,
	}, sessionMgr, engine, hist, cfg)
	discordBot.Attach(handler, engine, sessionMgr)

	if err := discordBot.Open(ctx); err != nil {
		return err
	}

	var (
		server      *http.Server
		listener    *apiconnect.ListenerService
		serverErrCh = make(chan error, 1)
	)
	if cfg.Admin.Enabled {
		server, listener = newAdminServer(cfg, sessionMgr)
		go func() {
			zlog.Info().Msgf("Starting admin server: addr=%s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- err
			}
		}()
	}

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "admin server")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		// End watch streams first so Shutdown does not wait on them
		listener.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown admin server: %v", err)
		}
	}
	sessionMgr.StopAll(shutdownCtx)
	engine.Close(shutdownCtx)
	sessionMgr.Close()
	discordBot.Close(shutdownCtx)

	zlog.Info().Msg("Server stopped")
	return runErr
}

// newAdminServer builds the admin and listener RPC server with h2c
// (HTTP/2 cleartext) support.
func newAdminServer(cfg *config.Config, sessionMgr *session.Manager) (*http.Server, *apiconnect.ListenerService) {
	listenerService := apiconnect.NewListenerService(sessionMgr)
	adminService := apiconnect.NewAdminService(sessionMgr, cfg)

	mux := http.NewServeMux()
	listenerPath, listenerHandler := apiconnect.NewListenerServiceHandler(listenerService)

	adminAuthInterceptor := apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		adminService,
		connect.WithInterceptors(adminAuthInterceptor),
	)

	mux.Handle(listenerPath, listenerHandler)
	mux.Handle(adminPath, adminHandler)

	return &http.Server{
		Addr:    cfg.Admin.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}, listenerService
}

// buildFilterChain converts the filter config into a filter chain.
func buildFilterChain(cfg *config.Config) (*filter.Chain, error) {
	settings := make(map[string]filter.Settings, len(cfg.Filters))
	for name, f := range cfg.Filters {
		settings[name] = filter.Settings{Enabled: f.Enabled, Settings: f.Settings}
	}
	return filter.Build(settings)
}

// buildResolver wires the search providers and link translators.
func buildResolver(ctx context.Context, cfg *config.Config) (*resolver.Resolver, error) {
	extractor := ytdlp.New()

	providers := make([]resolver.ProviderWithMetadata, 0, len(cfg.Resolver.Providers))
	for _, p := range cfg.Resolver.Providers {
		var provider resolver.SearchProvider
		switch p.Type {
		case "youtube":
			provider = youtube.NewVideoSearch()
		case "ytmusic":
			provider = youtube.NewMusicSearch()
		case "ytdlp":
			provider = extractor
		default:
			return nil, errors.Newf("unknown search provider %s", p.Type)
		}
		providers = append(providers, resolver.ProviderWithMetadata{Provider: provider, DisplayName: p.DisplayName})
	}

	opts := []resolver.Option{resolver.WithTimeout(cfg.ResolverTimeout())}
	if cfg.SpotifyEnabled() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		opts = append(opts, resolver.WithTranslators(spotifyClient))
		zlog.Info().Msg("Spotify links enabled")
	}
	return resolver.New(extractor, providers, opts...), nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f := filter.GetRegistered()[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
