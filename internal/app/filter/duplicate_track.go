package filter

import (
	"context"
	"regexp"
	"strings"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	// MatchTitles also rejects tracks whose normalized title matches a queued
	// track, which catches reuploads and remasters of the same song.
	MatchTitles bool `yaml:"match_titles" mapstructure:"match_titles"`
}

// DuplicateTrackFilter checks for duplicate tracks in the queue.
// Detects:
// - Exact source URL matches
// - Same song under another upload (normalized title), when enabled
type DuplicateTrackFilter struct {
	config DuplicateTrackConfig
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks that are already in the queue"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	return decodeSettings(settings, &f.config)
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	requested := normalizeTrackName(req.Track.Title)
	for _, queued := range req.Queued {
		if queued.URL != "" && queued.URL == req.Track.URL {
			return Reject("duplicate_track")
		}
		if f.config.MatchTitles && requested != "" && normalizeTrackName(queued.Title) == requested {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	uploadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]\s*official\s+(music\s+)?(video|audio|lyric video)\s*[\)\]]`), // "(Official Video)"
		regexp.MustCompile(`\s*[\(\[]\s*(lyrics?|audio|hd|hq|4k)\s*[\)\]]`),                        // "[Lyrics]"
		regexp.MustCompile(`\s*\(.*?version\)`),                                                    // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),                                                       // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),                                                 // "- Radio Edit"
	}
	spacePattern = regexp.MustCompile(`\s+`)
)

// normalizeTrackName strips remaster and upload decorations from a title.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)
	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range uploadPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	normalized = strings.TrimSpace(normalized)
	normalized = spacePattern.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
