package commands

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/godave/golibdave"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
)

// commandTimeout bounds one command, resolution included.
const commandTimeout = 60 * time.Second

// Voice is the engine side of the voice lifecycle.
type Voice interface {
	Connected(sessionID string) bool
	Disconnect(ctx context.Context, sessionID string) error
}

// Lifecycle tears sessions down after an external disconnect.
type Lifecycle interface {
	HandleDisconnected(sessionID string)
}

// Bot is the Discord gateway client.
type Bot struct {
	client    *bot.Client
	prefix    string
	handler   *Handler
	voice     Voice
	lifecycle Lifecycle
}

// NewBot creates the gateway client. Attach must be called before Open.
func NewBot(token, prefix string) (*Bot, error) {
	b := &Bot{prefix: prefix}
	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentGuildVoiceStates,
			),
			gateway.WithPresenceOpts(
				gateway.WithListeningActivity(prefix+"play"),
				gateway.WithOnlineStatus(discord.OnlineStatusOnline),
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagVoiceStates),
		),
		bot.WithVoiceManagerConfigOpts(
			voice.WithDaveSessionCreateFunc(golibdave.NewSession),
		),
		bot.WithEventListenerFunc(b.onReady),
		bot.WithEventListenerFunc(b.onMessageCreate),
		bot.WithEventListenerFunc(b.onVoiceStateUpdate),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create discord client")
	}
	b.client = client
	return b, nil
}

// VoiceManager returns the client's voice connection manager.
func (b *Bot) VoiceManager() voice.Manager {
	return b.client.VoiceManager
}

// Attach wires the command handler and the voice lifecycle.
func (b *Bot) Attach(handler *Handler, v Voice, lifecycle Lifecycle) {
	b.handler = handler
	b.voice = v
	b.lifecycle = lifecycle
}

// Open connects to the gateway.
func (b *Bot) Open(ctx context.Context) error {
	if b.handler == nil {
		return errors.New("bot has no command handler attached")
	}
	return errors.Wrap(b.client.OpenGateway(ctx), "open gateway")
}

// Close disconnects from the gateway.
func (b *Bot) Close(ctx context.Context) {
	b.client.Close(ctx)
}

// Send posts m to a channel. It makes the bot the announcer's Sender.
func (b *Bot) Send(ctx context.Context, channelID snowflake.ID, m discord.MessageCreate) error {
	_, err := b.client.Rest.CreateMessage(channelID, m, rest.WithCtx(ctx))
	return errors.Wrapf(err, "post message to %s", channelID)
}

func (b *Bot) onReady(event *events.Ready) {
	zlog.Info().Msgf("discord: ready: user=%s guilds=%d", event.User.Username, len(event.Guilds))
}

func (b *Bot) onMessageCreate(event *events.MessageCreate) {
	author := event.Message.Author
	if author.Bot || event.GuildID == nil {
		return
	}
	if _, _, ok := parseCommand(b.prefix, event.Message.Content); !ok {
		return
	}

	msg := Message{
		GuildID:    *event.GuildID,
		ChannelID:  event.ChannelID,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Content:    event.Message.Content,
	}
	if vs, ok := event.Client().Caches.VoiceState(*event.GuildID, author.ID); ok && vs.ChannelID != nil {
		msg.VoiceChannelID = *vs.ChannelID
	}

	// Resolution can take seconds; keep the gateway loop free
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		reply := b.handler.Handle(ctx, msg)
		if reply == nil {
			return
		}
		if err := b.Send(ctx, msg.ChannelID, *reply); err != nil {
			zlog.Warn().Msgf("discord: reply failed: guild=%s error=%v", msg.GuildID, err)
		}
	}()
}

// onVoiceStateUpdate tears the session down when the bot is removed from
// voice by anything other than its own disconnect.
func (b *Bot) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	state := event.VoiceState
	if state.UserID != event.Client().ID() || state.ChannelID != nil {
		return
	}
	sessionID := state.GuildID.String()
	if b.voice == nil || !b.voice.Connected(sessionID) {
		return
	}

	zlog.Info().Msgf("discord: disconnected from voice externally: guild=%s", sessionID)
	b.lifecycle.HandleDisconnected(sessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.voice.Disconnect(ctx, sessionID); err != nil {
		zlog.Warn().Msgf("discord: voice cleanup failed: guild=%s error=%v", sessionID, err)
	}
}
