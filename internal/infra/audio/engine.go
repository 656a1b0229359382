// Package audio plays tracks into Discord voice channels. Each bound track
// is streamed by yt-dlp, transcoded to Opus with ffmpeg and fed to the
// guild's voice connection.
package audio

import (
	"context"
	"io"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/ytdlp"
)

// ErrNoChannel is returned by Bind when no voice channel was set for the
// session.
var ErrNoChannel = errors.New("no voice channel selected")

// Conn is the part of a voice connection the engine drives.
type Conn interface {
	Open(ctx context.Context, channelID snowflake.ID) error
	Play(ctx context.Context, provider voice.OpusFrameProvider)
	Close(ctx context.Context)
}

// ConnFactory creates an unopened connection for a guild.
type ConnFactory func(guildID snowflake.ID) Conn

// Config holds engine configuration.
type Config struct {
	Bitrate     int
	FrameBuffer int
}

// session state is guarded by Engine.mu. bindMu serializes Bind and
// Disconnect for one session so a slow voice handshake never holds Engine.mu.
type session struct {
	bindMu    sync.Mutex
	channelID snowflake.ID
	conn      Conn
}

// Engine implements playback.Engine on top of voice connections.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session
	newConn  ConnFactory
	produce  func(locator string) producer
	cfg      Config
}

// NewEngine creates an engine streaming through yt-dlp and ffmpeg.
func NewEngine(cfg Config, newConn ConnFactory) *Engine {
	astiav.SetLogLevel(astiav.LogLevelFatal)
	e := newEngine(cfg, newConn)
	e.produce = e.ytdlpProducer
	return e
}

func newEngine(cfg Config, newConn ConnFactory) *Engine {
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = 128000
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 100
	}
	return &Engine{
		sessions: make(map[string]*session),
		newConn:  newConn,
		cfg:      cfg,
	}
}

// SetChannel records the voice channel the next connection for sessionID
// joins. It does no I/O. An already open connection stays where it is.
func (e *Engine) SetChannel(sessionID string, channelID snowflake.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionLocked(sessionID).channelID = channelID
}

// Connected reports whether sessionID has an open connection.
func (e *Engine) Connected(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	return ok && s.conn != nil
}

func (e *Engine) sessionLocked(sessionID string) *session {
	s, ok := e.sessions[sessionID]
	if !ok {
		s = &session{}
		e.sessions[sessionID] = s
	}
	return s
}

// Bind opens the session's voice connection if needed and starts streaming
// src into it.
func (e *Engine) Bind(ctx context.Context, sessionID string, src track.Source) (playback.Handle, error) {
	if src == nil {
		return nil, errors.New("track has no source")
	}

	e.mu.Lock()
	s := e.sessionLocked(sessionID)
	e.mu.Unlock()

	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	e.mu.Lock()
	conn, channelID := s.conn, s.channelID
	e.mu.Unlock()

	if conn == nil {
		if channelID == 0 {
			return nil, errors.Wrapf(ErrNoChannel, "session %s", sessionID)
		}
		guildID, err := snowflake.Parse(sessionID)
		if err != nil {
			return nil, errors.Wrapf(err, "session %s is not a guild id", sessionID)
		}
		conn = e.newConn(guildID)
		if err := conn.Open(ctx, channelID); err != nil {
			conn.Close(ctx)
			return nil, errors.Wrapf(err, "join voice channel %s", channelID)
		}
		e.mu.Lock()
		s.conn = conn
		e.mu.Unlock()
		zlog.Info().Msgf("audio: connected: session=%s channel=%s", sessionID, channelID)
	}

	h := newHandle(src.Locator(), e.cfg.FrameBuffer)
	go h.run(e.produce(src.Locator()))
	conn.Play(ctx, h.provider)
	return h, nil
}

// Disconnect closes the session's voice connection. It is a no-op when the
// session is not connected.
func (e *Engine) Disconnect(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	e.mu.Lock()
	conn := s.conn
	s.conn = nil
	e.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.Play(ctx, nil)
	conn.Close(ctx)
	zlog.Info().Msgf("audio: disconnected: session=%s", sessionID)
	return nil
}

// Close disconnects every session.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		_ = e.Disconnect(ctx, id)
	}
}

// ytdlpProducer pipes yt-dlp output through the transcoder.
func (e *Engine) ytdlpProducer(locator string) producer {
	return func(ctx context.Context, push func([]byte)) error {
		ctx, cancel := context.WithCancel(ctx)
		pr, pw := io.Pipe()
		streamErr := make(chan error, 1)
		go func() {
			err := ytdlp.Stream(ctx, locator, pw)
			pw.CloseWithError(err)
			streamErr <- err
		}()
		defer func() {
			cancel()
			_ = pr.Close()
			<-streamErr
		}()

		t := newTranscoder(e.cfg.Bitrate)
		defer t.close()
		if err := t.openInput(pr); err != nil {
			return err
		}
		if err := t.setupDecoder(); err != nil {
			return err
		}
		if err := t.setupEncoder(); err != nil {
			return err
		}
		return t.transcode(ctx, push)
	}
}

// disgoConn adapts a disgo voice connection.
type disgoConn struct {
	conn voice.Conn
}

// NewDisgoConnFactory returns a factory creating connections through a disgo
// voice manager.
func NewDisgoConnFactory(manager voice.Manager) ConnFactory {
	return func(guildID snowflake.ID) Conn {
		return &disgoConn{conn: manager.CreateConn(guildID)}
	}
}

func (c *disgoConn) Open(ctx context.Context, channelID snowflake.ID) error {
	return c.conn.Open(ctx, channelID, false, true)
}

func (c *disgoConn) Play(ctx context.Context, provider voice.OpusFrameProvider) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("audio: recovered from panic in SetOpusFrameProvider: %v", r)
		}
	}()
	c.conn.SetOpusFrameProvider(provider)
	if provider == nil {
		c.conn.SetSpeaking(ctx, 0)
		return
	}
	c.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone)
}

func (c *disgoConn) Close(ctx context.Context) {
	c.conn.Close(ctx)
}
