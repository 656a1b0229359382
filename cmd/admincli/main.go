// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/19voice/internal/api/connect"
)

var (
	app    = kingpin.New("19voice-admincli", "19voice admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// sessions command
	sessionsCmd = app.Command("sessions", "List guild sessions").Alias("list")

	// queue command
	queueCmd     = app.Command("queue", "Show a guild's queue")
	queueSession = queueCmd.Arg("guild-id", "Guild ID").Required().String()

	// skip command
	skipCmd     = app.Command("skip", "Skip the current track")
	skipSession = skipCmd.Arg("guild-id", "Guild ID").Required().String()

	// pause command
	pauseCmd     = app.Command("pause", "Pause playback")
	pauseSession = pauseCmd.Arg("guild-id", "Guild ID").Required().String()

	// resume command
	resumeCmd     = app.Command("resume", "Resume playback")
	resumeSession = resumeCmd.Arg("guild-id", "Guild ID").Required().String()

	// stop command
	stopCmd     = app.Command("stop", "Stop playback, clear the queue and leave voice")
	stopSession = stopCmd.Arg("guild-id", "Guild ID").Required().String()
)

var (
	heading = color.New(color.Bold, color.FgCyan)
	success = color.New(color.FgGreen)
	failed  = color.New(color.FgRed)
	dim     = color.New(color.Faint)
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		failed.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminServiceClient(http.DefaultClient, *server)
	ctx := context.Background()

	switch command {
	case sessionsCmd.FullCommand():
		listSessions(ctx, client)
	case queueCmd.FullCommand():
		showQueue(ctx, client, *queueSession)
	case skipCmd.FullCommand():
		runAction(ctx, client.Skip, *skipSession)
	case pauseCmd.FullCommand():
		runAction(ctx, client.Pause, *pauseSession)
	case resumeCmd.FullCommand():
		runAction(ctx, client.Resume, *resumeSession)
	case stopCmd.FullCommand():
		runAction(ctx, client.Stop, *stopSession)
	}
}

func authed[T any](msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(apiconnect.AdminTokenHeader, *token)
	return req
}

func exitOnError(err error) {
	if err != nil {
		failed.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listSessions(ctx context.Context, client *apiconnect.AdminServiceClient) {
	resp, err := client.ListSessions(ctx, authed(&apiconnect.ListSessionsRequest{}))
	exitOnError(err)

	heading.Println("\n=== SESSIONS ===")
	if len(resp.Msg.Sessions) == 0 {
		dim.Println("No sessions")
	}
	for _, s := range resp.Msg.Sessions {
		fmt.Printf("\nGuild: %s\n", s.SessionID)
		fmt.Printf("  State: %s\n", formatState(s.State))
		fmt.Printf("  Queue Size: %d\n", s.QueueSize)
		fmt.Printf("  Generation: %d\n", s.Generation)
		if s.CurrentTrack != nil {
			fmt.Printf("  Current: %s (%s) requested by %s\n",
				s.CurrentTrack.Title, formatDuration(s.CurrentTrack.DurationSeconds), s.CurrentTrack.RequesterName)
		}
	}
	fmt.Println()
}

func showQueue(ctx context.Context, client *apiconnect.AdminServiceClient, sessionID string) {
	resp, err := client.GetQueue(ctx, authed(&apiconnect.SessionRequest{SessionID: sessionID}))
	exitOnError(err)

	heading.Printf("\n=== QUEUE %s ===\n", sessionID)
	fmt.Printf("State: %s\n\n", formatState(resp.Msg.Session.State))
	if len(resp.Msg.Tracks) == 0 {
		dim.Println("The queue is empty.")
	}
	for i, t := range resp.Msg.Tracks {
		line := fmt.Sprintf("%2d: %s [%s] requested by %s", i+1, t.Title, formatDuration(t.DurationSeconds), t.RequesterName)
		if i == 0 {
			success.Println(line)
			continue
		}
		fmt.Println(line)
	}
	fmt.Println()
}

type action func(context.Context, *connect.Request[apiconnect.SessionRequest]) (*connect.Response[apiconnect.ActionResponse], error)

func runAction(ctx context.Context, call action, sessionID string) {
	resp, err := call(ctx, authed(&apiconnect.SessionRequest{SessionID: sessionID}))
	exitOnError(err)

	if resp.Msg.Success {
		success.Println(resp.Msg.Message)
		return
	}
	failed.Printf("Failed [%s]: %s\n", resp.Msg.Code, resp.Msg.Message)
	os.Exit(1)
}

func formatState(state string) string {
	switch state {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "idle":
		return "⏹  Idle"
	default:
		return "❓ Unknown"
	}
}

func formatDuration(seconds uint) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
