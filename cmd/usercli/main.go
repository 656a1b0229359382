// Package main provides a read-only client that follows playback events.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/19voice/internal/api/connect"
)

var (
	app    = kingpin.New("19voice-usercli", "19voice playback event watcher")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	watchCmd   = app.Command("watch", "Follow playback events").Default()
	watchGuild = watchCmd.Arg("guild-id", "Guild ID (default: all guilds)").String()
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewListenerServiceClient(http.DefaultClient, *server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case watchCmd.FullCommand():
		watch(ctx, client, *watchGuild)
	}
}

func watch(ctx context.Context, client *apiconnect.ListenerServiceClient, guildID string) {
	stream, err := client.WatchEvents(ctx, connect.NewRequest(&apiconnect.WatchEventsRequest{SessionID: guildID}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Watching playback events. Press Ctrl+C to exit.")

	for stream.Receive() {
		printEvent(stream.Msg())
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printEvent(ev *apiconnect.EventMessage) {
	fmt.Printf("\n[Sequence: %d] ", ev.SequenceNo)

	switch ev.Type {
	case apiconnect.EventTypeInitialState:
		color.New(color.Bold).Println("=== INITIAL STATE ===")
	case "track_started":
		color.New(color.FgGreen).Println("=== TRACK STARTED ===")
	case "track_skipped":
		color.New(color.FgYellow).Println("=== TRACK SKIPPED ===")
	case "state_changed":
		color.New(color.FgCyan).Println("=== STATE CHANGED ===")
	case "stopped":
		color.New(color.FgRed).Println("=== STOPPED ===")
	case "engine_failed":
		color.New(color.FgRed, color.Bold).Println("=== ENGINE FAILED ===")
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", ev.Type)
	}

	fmt.Printf("  Guild: %s\n", ev.SessionID)
	fmt.Printf("  State: %s\n", ev.State)
	if ev.Reason != "" {
		fmt.Printf("  Reason: %s\n", ev.Reason)
	}
	if ev.QueueSize > 0 {
		fmt.Printf("  Queue Size: %d\n", ev.QueueSize)
	}
	if ev.Track != nil {
		fmt.Println("  Track:")
		fmt.Printf("    Title: %s\n", ev.Track.Title)
		fmt.Printf("    URL: %s\n", ev.Track.URL)
		fmt.Printf("    Duration: %d seconds\n", ev.Track.DurationSeconds)
		fmt.Printf("    Requested by: %s\n", ev.Track.RequesterName)
	}
	if ev.Error != "" {
		fmt.Printf("  Error: %s\n", ev.Error)
	}
}
