// Package websocket implements the conversational channel over a WebSocket:
// JSON control messages in text frames and Opus packets in binary frames.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"

	"voice-client/internal/application"
	"voice-client/internal/domain"
)

const eventBuffer = 256

type Config struct {
	URL             string
	AccessToken     string
	ProtocolVersion int
	DeviceID        string
	ClientID        string

	SampleRate    int
	Channels      int
	FrameDuration time.Duration

	HelloTimeout time.Duration
	PingInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = 1
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.FrameDuration == 0 {
		c.FrameDuration = 60 * time.Millisecond
	}
	if c.HelloTimeout == 0 {
		c.HelloTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

// connection is one open channel. It is replaced on every OpenChannel.
type connection struct {
	ws      *gorilla.Conn
	writeMu sync.Mutex
	hello   chan serverHello
	done    chan struct{}
	closing atomic.Bool
}

func (c *connection) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(messageType, data)
}

// Protocol is a ChannelProtocol speaking the device WebSocket protocol.
type Protocol struct {
	cfg    Config
	logger *slog.Logger
	events chan application.ChannelEvent
	stop   chan struct{}

	mu        sync.Mutex
	conn      *connection
	sessionID string
	stopOnce  sync.Once

	serverRate atomic.Int32
	open       atomic.Bool
}

func NewProtocol(cfg Config, logger *slog.Logger) *Protocol {
	return &Protocol{
		cfg:    cfg.withDefaults(),
		logger: logger,
		events: make(chan application.ChannelEvent, eventBuffer),
		stop:   make(chan struct{}),
	}
}

// SetEndpoint replaces the URL and token used by the next OpenChannel.
func (p *Protocol) SetEndpoint(rawURL, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.URL = rawURL
	if token != "" {
		p.cfg.AccessToken = token
	}
}

func (p *Protocol) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.URL == "" {
		return ErrNoEndpoint
	}
	if _, err := url.Parse(p.cfg.URL); err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	return nil
}

func (p *Protocol) Events() <-chan application.ChannelEvent {
	return p.events
}

func (p *Protocol) IsOpen() bool {
	return p.open.Load()
}

func (p *Protocol) NegotiatedSampleRate() int {
	return int(p.serverRate.Load())
}

// OpenChannel dials the server, sends the client hello and waits for the server
// hello that carries the session id and output sample rate.
func (p *Protocol) OpenChannel(ctx context.Context) error {
	p.mu.Lock()
	cfg := p.cfg
	old := p.conn
	p.mu.Unlock()

	if old != nil {
		p.closeConnection(old)
	}

	header := http.Header{}
	if cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AccessToken)
	}
	header.Set("Protocol-Version", strconv.Itoa(cfg.ProtocolVersion))
	header.Set("Device-Id", cfg.DeviceID)
	header.Set("Client-Id", cfg.ClientID)

	dialer := gorilla.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	p.logger.Debug("connecting to websocket", "url", cfg.URL)
	ws, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cfg.URL, err)
	}

	conn := &connection{
		ws:    ws,
		hello: make(chan serverHello, 1),
		done:  make(chan struct{}),
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.readLoop(conn)

	hello, err := json.Marshal(clientHello{
		Type:      domain.MessageHello,
		Version:   cfg.ProtocolVersion,
		Transport: "websocket",
		AudioParams: audioParams{
			Format:        "opus",
			SampleRate:    cfg.SampleRate,
			Channels:      cfg.Channels,
			FrameDuration: int(cfg.FrameDuration / time.Millisecond),
		},
	})
	if err != nil {
		p.closeConnection(conn)
		return fmt.Errorf("encoding hello: %w", err)
	}
	if err := conn.write(gorilla.TextMessage, hello); err != nil {
		p.closeConnection(conn)
		return fmt.Errorf("sending hello: %w", err)
	}

	timer := time.NewTimer(cfg.HelloTimeout)
	defer timer.Stop()

	select {
	case sh := <-conn.hello:
		p.mu.Lock()
		p.sessionID = sh.SessionID
		p.mu.Unlock()
		if sh.AudioParams.SampleRate > 0 {
			p.serverRate.Store(int32(sh.AudioParams.SampleRate))
		}
		p.logger.Info("websocket channel opened",
			"session_id", sh.SessionID,
			"sample_rate", sh.AudioParams.SampleRate,
		)
	case <-conn.done:
		p.closeConnection(conn)
		return fmt.Errorf("%w: connection closed before hello", ErrNotConnected)
	case <-timer.C:
		p.closeConnection(conn)
		return ErrHelloTimeout
	case <-ctx.Done():
		p.closeConnection(conn)
		return ctx.Err()
	}

	p.open.Store(true)
	go p.keepAlive(conn)
	p.emit(application.ChannelEvent{Kind: application.ChannelOpened})
	return nil
}

func (p *Protocol) readLoop(conn *connection) {
	defer close(conn.done)

	helloSeen := false
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			p.onDisconnect(conn, err)
			return
		}

		switch messageType {
		case gorilla.BinaryMessage:
			p.emitAudio(data)
		case gorilla.TextMessage:
			msg, err := domain.ParseControlMessage(data)
			if err != nil {
				p.logger.Warn("invalid control message", "error", err)
				continue
			}
			if msg.Type == domain.MessageHello && !helloSeen {
				helloSeen = true
				var sh serverHello
				if err := json.Unmarshal(data, &sh); err != nil {
					p.logger.Warn("invalid server hello", "error", err)
					continue
				}
				conn.hello <- sh
				continue
			}
			p.emit(application.ChannelEvent{Kind: application.ChannelControl, Control: msg})
		}
	}
}

func (p *Protocol) onDisconnect(conn *connection, err error) {
	p.mu.Lock()
	current := p.conn == conn
	if current {
		p.conn = nil
	}
	p.mu.Unlock()

	if !current {
		return
	}
	wasOpen := p.open.Swap(false)

	if !conn.closing.Load() && !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		p.logger.Warn("websocket read failed", "error", err)
		p.emit(application.ChannelEvent{Kind: application.ChannelNetworkError, Err: err})
	}
	if wasOpen {
		p.logger.Info("websocket channel closed")
		p.emit(application.ChannelEvent{Kind: application.ChannelClosed})
	}
}

func (p *Protocol) keepAlive(conn *connection) {
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			conn.writeMu.Lock()
			err := conn.ws.WriteControl(gorilla.PingMessage, nil, time.Now().Add(10*time.Second))
			conn.writeMu.Unlock()
			if err != nil {
				p.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// emit delivers an event unless the protocol has been closed.
func (p *Protocol) emit(ev application.ChannelEvent) {
	select {
	case p.events <- ev:
	case <-p.stop:
	}
}

// emitAudio never blocks the reader; audio arriving faster than it is played
// is dropped.
func (p *Protocol) emitAudio(data []byte) {
	select {
	case p.events <- application.ChannelEvent{Kind: application.ChannelAudio, Audio: data}:
	default:
		p.logger.Debug("dropping incoming audio, event queue full")
	}
}

func (p *Protocol) current() (*connection, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || !p.open.Load() {
		return nil, "", ErrNotConnected
	}
	return p.conn, p.sessionID, nil
}

func (p *Protocol) SendAudio(frame []byte) error {
	conn, _, err := p.current()
	if err != nil {
		return err
	}
	if err := conn.write(gorilla.BinaryMessage, frame); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}
	return nil
}

func (p *Protocol) sendJSON(msg func(sessionID string) any) error {
	conn, sessionID, err := p.current()
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg(sessionID))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := conn.write(gorilla.TextMessage, data); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (p *Protocol) SendStartListening(_ context.Context, mode domain.ListenMode) error {
	return p.sendJSON(func(id string) any {
		return listenMessage{SessionID: id, Type: "listen", State: "start", Mode: mode}
	})
}

func (p *Protocol) SendStopListening(_ context.Context) error {
	return p.sendJSON(func(id string) any {
		return listenMessage{SessionID: id, Type: "listen", State: "stop"}
	})
}

func (p *Protocol) SendWakeWordDetected(_ context.Context, token string) error {
	return p.sendJSON(func(id string) any {
		return listenMessage{SessionID: id, Type: "listen", State: "detect", Text: token}
	})
}

func (p *Protocol) SendAbortSpeaking(_ context.Context, reason domain.AbortReason) error {
	return p.sendJSON(func(id string) any {
		return abortMessage{SessionID: id, Type: "abort", Reason: reason}
	})
}

// CloseChannel closes the current connection. The Closed event follows from the
// reader once the socket shuts down.
func (p *Protocol) CloseChannel() error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	return p.closeConnection(conn)
}

func (p *Protocol) closeConnection(conn *connection) error {
	if conn.closing.Swap(true) {
		return nil
	}

	msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")
	conn.writeMu.Lock()
	writeErr := conn.ws.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(time.Second))
	conn.writeMu.Unlock()

	err := conn.ws.Close()
	if writeErr != nil && !errors.Is(writeErr, gorilla.ErrCloseSent) {
		p.logger.Debug("sending close frame", "error", writeErr)
	}
	if err != nil {
		return fmt.Errorf("closing websocket: %w", err)
	}
	return nil
}

// Close shuts the channel and stops event delivery.
func (p *Protocol) Close() error {
	err := p.CloseChannel()
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	return err
}
