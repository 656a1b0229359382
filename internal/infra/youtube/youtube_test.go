package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/19voice/internal/app/resolver"
)

func TestCollector(t *testing.T) {
	c := newCollector(videoBaseURL, 2)

	assert.False(t, c.add("", "empty id", ""))
	assert.False(t, c.add("a", "First", ""))
	assert.False(t, c.add("a", "Duplicate", ""))
	assert.True(t, c.add("b", "Second", "Artist"))

	assert.Equal(t, []resolver.Hit{
		{URL: "https://www.youtube.com/watch?v=a", Title: "First"},
		{URL: "https://www.youtube.com/watch?v=b", Title: "Artist - Second"},
	}, c.hits)
}

func TestCollector_DefaultLimit(t *testing.T) {
	c := newCollector(musicBaseURL, 0)
	assert.True(t, c.add("x", "Only", ""))
	assert.Equal(t, "https://music.youtube.com/watch?v=x", c.hits[0].URL)
}

func TestProviderNames(t *testing.T) {
	assert.Equal(t, "youtube", NewVideoSearch().Name())
	assert.Equal(t, "ytmusic", NewMusicSearch().Name())
}
