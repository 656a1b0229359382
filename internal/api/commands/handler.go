// Package commands implements the prefixed text commands (!play, !skip, ...)
// and the channel announcer on top of the session manager.
package commands

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/history"
)

// Sessions is the command boundary of the session manager.
type Sessions interface {
	OnPlay(ctx context.Context, sessionID, channelID, query string, requester track.Requester) (*session.PlayResult, error)
	OnSkip(ctx context.Context, sessionID string) (*session.SkipResult, error)
	OnRemove(ctx context.Context, sessionID string, position int) (*track.Track, error)
	OnPause(ctx context.Context, sessionID string) (*track.Track, error)
	OnUnpause(ctx context.Context, sessionID string) (*track.Track, error)
	OnStop(ctx context.Context, sessionID string) error
	ListQueue(sessionID string) []*track.Track
	Snapshot(sessionID string) session.Snapshot
}

// VoiceTarget records which voice channel a session should join.
type VoiceTarget interface {
	SetChannel(sessionID string, channelID snowflake.ID)
}

// HistoryReader reads recently played tracks.
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]history.Entry, error)
}

// Messages looks up user-facing texts by code.
type Messages interface {
	GetMessage(code string) string
}

// Message is an incoming chat message with the author's voice channel
// resolved. VoiceChannelID is zero when the author is not in voice.
type Message struct {
	GuildID        snowflake.ID
	ChannelID      snowflake.ID
	AuthorID       snowflake.ID
	AuthorName     string
	Content        string
	VoiceChannelID snowflake.ID
}

// Config holds handler configuration.
type Config struct {
	Prefix       string
	RatePerSec   float64
	RateBurst    int
	HistoryLimit int
}

// Handler turns messages into session commands and builds the replies.
type Handler struct {
	cfg      Config
	sessions Sessions
	voice    VoiceTarget
	history  HistoryReader
	messages Messages
	now      func() time.Time

	limitersMu sync.Mutex
	limiters   map[snowflake.ID]*rate.Limiter
}

// NewHandler creates a command handler. history may be nil.
func NewHandler(cfg Config, sessions Sessions, voice VoiceTarget, hist HistoryReader, messages Messages) *Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 3
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		voice:    voice,
		history:  hist,
		messages: messages,
		now:      time.Now,
		limiters: make(map[snowflake.ID]*rate.Limiter),
	}
}

// parseCommand splits "!name args" into its parts. ok is false when content
// does not start with prefix.
func parseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, prefix)
	name, args, _ = strings.Cut(rest, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// Handle runs the command in msg. It returns nil when msg is not a command
// or needs no reply.
func (h *Handler) Handle(ctx context.Context, msg Message) *discord.MessageCreate {
	name, args, ok := parseCommand(h.cfg.Prefix, msg.Content)
	if !ok {
		return nil
	}

	var reply func(ctx context.Context, msg Message, args string) discord.MessageCreate
	switch name {
	case "play":
		reply = h.play
	case "skip":
		reply = h.skip
	case "queue":
		reply = h.queue
	case "remove":
		reply = h.remove
	case "pause":
		reply = h.pause
	case "unpause", "resume":
		reply = h.unpause
	case "stop":
		reply = h.stop
	case "np":
		reply = h.nowPlaying
	case "history":
		reply = h.recent
	case "help":
		reply = h.help
	default:
		return nil
	}

	if !h.allow(msg.AuthorID) {
		zlog.Debug().Msgf("commands: rate limited: user=%s command=%s", msg.AuthorID, name)
		return h.text("rate_limited")
	}

	zlog.Info().Msgf("commands: %s: guild=%s user=%s args=%q", name, msg.GuildID, msg.AuthorName, args)
	r := reply(ctx, msg, args)
	return &r
}

// allow applies the per-user command rate limit.
func (h *Handler) allow(userID snowflake.ID) bool {
	h.limitersMu.Lock()
	defer h.limitersMu.Unlock()
	l, ok := h.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.cfg.RatePerSec), h.cfg.RateBurst)
		h.limiters[userID] = l
	}
	return l.Allow()
}

func (h *Handler) play(ctx context.Context, msg Message, args string) discord.MessageCreate {
	if args == "" {
		return discord.MessageCreate{Content: "You need to provide a link or search query!"}
	}
	if msg.VoiceChannelID == 0 {
		return *h.text("not_in_voice")
	}

	sessionID := msg.GuildID.String()
	h.voice.SetChannel(sessionID, msg.VoiceChannelID)
	requester := track.Requester{ID: msg.AuthorID.String(), Name: msg.AuthorName}

	res, err := h.sessions.OnPlay(ctx, sessionID, msg.ChannelID.String(), args, requester)
	if err != nil {
		return h.failure(err)
	}
	if res.Started {
		return h.embed(nowPlayingEmbed(res.Track, h.now()))
	}
	return h.embed(addedEmbed(res.Track, res.Position, h.now()))
}

func (h *Handler) skip(ctx context.Context, msg Message, _ string) discord.MessageCreate {
	res, err := h.sessions.OnSkip(ctx, msg.GuildID.String())
	if err != nil {
		return h.failure(err)
	}
	if res.Next == nil {
		return h.embed(titleEmbed("Queue ended", colorRed, "Skipped "+res.Skipped.Title+". Nothing left to play.", h.now()))
	}
	return h.embed(nowPlayingEmbed(res.Next, h.now()))
}

func (h *Handler) queue(_ context.Context, msg Message, _ string) discord.MessageCreate {
	return h.embed(queueEmbed(h.sessions.ListQueue(msg.GuildID.String()), h.now()))
}

func (h *Handler) remove(ctx context.Context, msg Message, args string) discord.MessageCreate {
	if args == "" {
		return discord.MessageCreate{Content: "You need to provide a queue position"}
	}
	position, err := strconv.Atoi(args)
	if err != nil {
		return discord.MessageCreate{Content: "Queue position must be a number"}
	}

	removed, err := h.sessions.OnRemove(ctx, msg.GuildID.String(), position)
	if err != nil {
		return h.failure(err)
	}
	return h.embed(titleEmbed("Removed from queue", colorFabledPink, removed.Title, h.now()))
}

func (h *Handler) pause(ctx context.Context, msg Message, _ string) discord.MessageCreate {
	t, err := h.sessions.OnPause(ctx, msg.GuildID.String())
	if err != nil {
		return h.failure(err)
	}
	return h.embed(titleEmbed("Paused", colorDarkGreen, t.Title, h.now()))
}

func (h *Handler) unpause(ctx context.Context, msg Message, _ string) discord.MessageCreate {
	t, err := h.sessions.OnUnpause(ctx, msg.GuildID.String())
	if err != nil {
		return h.failure(err)
	}
	return h.embed(titleEmbed("Unpaused", colorDarkGreen, t.Title, h.now()))
}

func (h *Handler) stop(ctx context.Context, msg Message, _ string) discord.MessageCreate {
	if err := h.sessions.OnStop(ctx, msg.GuildID.String()); err != nil {
		return h.failure(err)
	}
	return h.embed(titleEmbed("Stopped", colorRed, "Queue cleared.", h.now()))
}

func (h *Handler) nowPlaying(_ context.Context, msg Message, _ string) discord.MessageCreate {
	snap := h.sessions.Snapshot(msg.GuildID.String())
	if snap.Current == nil {
		return *h.text(session.CodeNotPlaying)
	}
	e := nowPlayingEmbed(snap.Current, h.now())
	if snap.State == playback.StatePaused {
		e.Title = "Paused"
	}
	return h.embed(e)
}

func (h *Handler) recent(ctx context.Context, msg Message, _ string) discord.MessageCreate {
	if h.history == nil {
		return discord.MessageCreate{Content: "History is not enabled."}
	}
	entries, err := h.history.Recent(ctx, msg.GuildID.String(), h.cfg.HistoryLimit)
	if err != nil {
		zlog.Error().Msgf("commands: history lookup failed: guild=%s error=%v", msg.GuildID, err)
		return *h.text(session.CodeInternalError)
	}
	return h.embed(historyEmbed(entries, h.now()))
}

func (h *Handler) help(_ context.Context, _ Message, _ string) discord.MessageCreate {
	return h.embed(helpEmbed(h.cfg.Prefix, h.now()))
}

// failure renders a command error as its configured message.
func (h *Handler) failure(err error) discord.MessageCreate {
	code := session.MessageCode(err)
	if code == session.CodeInternalError || code == session.CodeEngineError {
		zlog.Error().Msgf("commands: command failed: code=%s error=%v", code, err)
	}
	return *h.text(code)
}

func (h *Handler) text(code string) *discord.MessageCreate {
	return &discord.MessageCreate{Content: h.messages.GetMessage(code)}
}

func (h *Handler) embed(e discord.Embed) discord.MessageCreate {
	return discord.MessageCreate{Embeds: []discord.Embed{e}}
}
