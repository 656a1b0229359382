package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/track"
)

type nopHandle struct {
	gen uint64
	fn  playback.EndFunc
}

func (h *nopHandle) Subscribe(gen uint64, fn playback.EndFunc) { h.gen, h.fn = gen, fn }
func (h *nopHandle) Stop() error                               { return nil }
func (h *nopHandle) Pause() error                              { return nil }
func (h *nopHandle) Resume() error                             { return nil }

type nopEngine struct{ last *nopHandle }

func (e *nopEngine) Bind(context.Context, string, track.Source) (playback.Handle, error) {
	e.last = &nopHandle{}
	return e.last, nil
}
func (e *nopEngine) Disconnect(context.Context, string) error { return nil }

type src string

func (s src) Locator() string { return string(s) }

func TestRegistry_GetOrCreate(t *testing.T) {
	r := New(Config{Engine: &nopEngine{}})

	a := r.GetOrCreate("g1")
	b := r.GetOrCreate("g1")
	c := r.GetOrCreate("g2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Count())
	assert.NotNil(t, a.Queue())
	assert.NotNil(t, a.Controller())
	assert.NotSame(t, a.Queue(), c.Queue(), "sessions never share a queue")

	got, ok := r.Get("g2")
	require.True(t, ok)
	assert.Same(t, c, got)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := New(Config{Engine: &nopEngine{}})

	var wg sync.WaitGroup
	results := make([]*Session, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("g1")
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_EndSignalCarriesSessionKey(t *testing.T) {
	engine := &nopEngine{}
	type signal struct {
		id  string
		gen uint64
	}
	var got []signal
	r := New(Config{
		Engine:     engine,
		OnTrackEnd: func(id string, gen uint64) { got = append(got, signal{id, gen}) },
	})

	s := r.GetOrCreate("g7")
	s.Lock()
	tr := &track.Track{Title: "A", Source: src("a")}
	s.Queue().Add(tr)
	require.NoError(t, s.Controller().Start(context.Background(), tr))
	s.Unlock()

	engine.last.fn(engine.last.gen)
	assert.Equal(t, []signal{{"g7", 1}}, got)
}

func TestRegistry_All(t *testing.T) {
	r := New(Config{Engine: &nopEngine{}})
	r.GetOrCreate("b")
	r.GetOrCreate("a")
	r.GetOrCreate("c")

	ids := []string{}
	for _, s := range r.All() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
