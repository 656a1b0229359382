package commands

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
)

// Sender posts a message to a text channel.
type Sender interface {
	Send(ctx context.Context, channelID snowflake.ID, m discord.MessageCreate) error
}

// ChannelLookup returns the text channel a session last took a command from.
type ChannelLookup interface {
	ChannelID(sessionID string) string
}

// Announcer posts playback changes nobody asked for: tracks started by the
// previous one ending, and teardown after the bot was disconnected.
// Command-driven changes are answered by the command reply instead.
type Announcer struct {
	sender   Sender
	channels ChannelLookup
	now      func() time.Time
}

// NewAnnouncer creates an announcer.
func NewAnnouncer(sender Sender, channels ChannelLookup) *Announcer {
	return &Announcer{sender: sender, channels: channels, now: time.Now}
}

// Send implements notification.Subscriber.
func (a *Announcer) Send(ctx context.Context, n notification.Notification) error {
	m, ok := a.render(n.Event)
	if !ok {
		return nil
	}

	raw := a.channels.ChannelID(n.Event.SessionID)
	if raw == "" {
		return nil
	}
	channelID, err := snowflake.Parse(raw)
	if err != nil {
		zlog.Warn().Msgf("announcer: bad channel id: session=%s channel=%q", n.Event.SessionID, raw)
		return nil
	}

	if err := a.sender.Send(ctx, channelID, m); err != nil {
		zlog.Warn().Msgf("announcer: send failed: session=%s seq=%d error=%v", n.Event.SessionID, n.SequenceNo, err)
		return err
	}
	return nil
}

func (a *Announcer) render(ev playback.Event) (discord.MessageCreate, bool) {
	switch {
	case ev.Type == playback.EventTrackStarted && ev.Reason == playback.ReasonTrackEnd && ev.Track != nil:
		return discord.MessageCreate{Embeds: []discord.Embed{nowPlayingEmbed(ev.Track, a.now())}}, true
	case ev.Type == playback.EventStopped && ev.Reason == playback.ReasonDisconnected:
		e := titleEmbed("Disconnected", colorRed, "Left the voice channel. Queue cleared.", a.now())
		return discord.MessageCreate{Embeds: []discord.Embed{e}}, true
	}
	return discord.MessageCreate{}, false
}
