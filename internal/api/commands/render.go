package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/history"
)

// Embed colours
const (
	colorBlue       = 0x3498DB
	colorRed        = 0xE74C3C
	colorFabledPink = 0xFAB1ED
	colorDarkGreen  = 0x1F8B4C
	colorOrange     = 0xE67E22
	colorGrey       = 0x95A5A6
)

// maxQueueLines caps the lines of a queue listing to stay under the
// embed description limit.
const maxQueueLines = 25

func inline(v bool) *bool { return &v }

func trackEmbed(title string, color int, t *track.Track, now time.Time) discord.Embed {
	e := discord.Embed{
		Title:     title,
		Color:     color,
		Timestamp: &now,
		Fields: []discord.EmbedField{
			{Name: "Title", Value: t.Title, Inline: inline(true)},
			{Name: "Duration", Value: t.DurationString(), Inline: inline(true)},
		},
	}
	if t.ThumbnailURL != "" {
		e.Thumbnail = &discord.EmbedResource{URL: t.ThumbnailURL}
	}
	return e
}

func nowPlayingEmbed(t *track.Track, now time.Time) discord.Embed {
	return trackEmbed("Now playing", colorBlue, t, now)
}

func addedEmbed(t *track.Track, position int, now time.Time) discord.Embed {
	e := trackEmbed("Added to queue", colorBlue, t, now)
	e.Fields = append(e.Fields, discord.EmbedField{Name: "Position", Value: fmt.Sprintf("%d", position), Inline: inline(true)})
	return e
}

func titleEmbed(title string, color int, text string, now time.Time) discord.Embed {
	return discord.Embed{
		Title:       title,
		Color:       color,
		Timestamp:   &now,
		Description: text,
	}
}

func queueEmbed(tracks []*track.Track, now time.Time) discord.Embed {
	if len(tracks) == 0 {
		return titleEmbed("Queue", colorRed, "The queue is empty.", now)
	}
	lines := make([]string, 0, len(tracks))
	for i, t := range tracks {
		if i == maxQueueLines {
			lines = append(lines, fmt.Sprintf("... and %d more", len(tracks)-maxQueueLines))
			break
		}
		lines = append(lines, fmt.Sprintf("%d: %s [%s]", i+1, t.Title, t.DurationString()))
	}
	return titleEmbed("Queue", colorRed, strings.Join(lines, "\n"), now)
}

func historyEmbed(entries []history.Entry, now time.Time) discord.Embed {
	if len(entries) == 0 {
		return titleEmbed("History", colorGrey, "Nothing has been played yet.", now)
	}
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d: %s (%s)", i+1, e.Title, e.RequesterName))
	}
	return titleEmbed("History", colorGrey, strings.Join(lines, "\n"), now)
}

type helpEntry struct {
	name string
	text string
}

var helpEntries = []helpEntry{
	{"play", "Play/Queue a track from a link or search term"},
	{"skip", "Skip the current track and start the next"},
	{"queue", "View currently queued tracks"},
	{"remove", "Remove a track from the queue"},
	{"pause", "Pause the current track"},
	{"unpause", "Unpause the current track"},
	{"stop", "Stop playback, clear the queue and leave"},
	{"np", "Show the current track"},
	{"history", "Show recently played tracks"},
}

func helpEmbed(prefix string, now time.Time) discord.Embed {
	fields := make([]discord.EmbedField, 0, len(helpEntries))
	for _, h := range helpEntries {
		fields = append(fields, discord.EmbedField{Name: prefix + h.name, Value: h.text, Inline: inline(false)})
	}
	return discord.Embed{
		Title:     "Help",
		Color:     colorOrange,
		Timestamp: &now,
		Fields:    fields,
	}
}
