// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/netutil"
)

// TokenSource supplies the current bearer token. The credential holder
// implements it; the token is read once per handshake so a refreshed
// credential is picked up by the next cycle.
type TokenSource interface {
	Bearer() string
}

// Config configures a Client.
type Config struct {
	// URL is the websocket endpoint, e.g. wss://host/query.
	URL string

	// Origin and UserAgent are sent on the upgrade request.
	Origin    string
	UserAgent string

	Channel Channel

	// HandshakeTimeout bounds the whole handshake from dial to frame.
	HandshakeTimeout time.Duration

	// Dialer defaults to a copy of websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client runs realtime handshakes. Safe for concurrent use; each call
// opens its own channel.
type Client struct {
	url              string
	header           http.Header
	channel          Channel
	handshakeTimeout time.Duration
	dialer           *websocket.Dialer
	token            TokenSource
	clock            clock.Clock
	logger           *slog.Logger
}

// New returns a Client. Zero-valued Clock and Logger fields default to
// the real clock and slog.Default().
func New(config Config, token TokenSource) *Client {
	dialer := config.Dialer
	if dialer == nil {
		copied := *websocket.DefaultDialer
		dialer = &copied
	}
	dialer.Subprotocols = []string{Subprotocol}

	header := http.Header{}
	if config.Origin != "" {
		header.Set("Origin", config.Origin)
	}
	if config.UserAgent != "" {
		header.Set("User-Agent", config.UserAgent)
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.HandshakeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		url:              config.URL,
		header:           header,
		channel:          config.Channel,
		handshakeTimeout: timeout,
		dialer:           dialer,
		token:            token,
		clock:            clk,
		logger:           logger,
	}
}

type result struct {
	url string
	err error
}

// FullFrameURL opens a channel, subscribes, and returns the image URL
// of the first full frame. The channel is closed before returning in
// every case.
func (c *Client) FullFrameURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := &session{}
	defer session.close()

	results := make(chan result, 1)
	go func() {
		url, err := c.handshake(ctx, session)
		results <- result{url: url, err: err}
	}()

	select {
	case r := <-results:
		return r.url, r.err
	case <-c.clock.After(c.handshakeTimeout):
		return "", ErrHandshakeTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) handshake(ctx context.Context, s *session) (string, error) {
	conn, response, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if response != nil {
			return "", fmt.Errorf("realtime: dial %s: %w (HTTP %d)", c.url, err, response.StatusCode)
		}
		return "", fmt.Errorf("realtime: dial %s: %w", c.url, err)
	}
	if !s.attach(conn) {
		return "", ctx.Err()
	}

	subscriptionID := uuid.NewString()
	if err := conn.WriteJSON(newInit(c.token.Bearer())); err != nil {
		return "", fmt.Errorf("realtime: sending connection_init: %w", err)
	}
	if err := conn.WriteJSON(newStart(subscriptionID, c.channel)); err != nil {
		return "", fmt.Errorf("realtime: sending start: %w", err)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || netutil.IsExpectedCloseError(err) {
				return "", fmt.Errorf("%w: %v", ErrClosedBeforeFrame, err)
			}
			return "", fmt.Errorf("realtime: reading: %w", err)
		}

		url, done, err := c.interpret(subscriptionID, message)
		if done {
			if err == nil {
				// Best effort; the connection is closed right after.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return url, err
		}
	}
}

// interpret classifies one inbound message. done is false for messages
// the handshake skips.
func (c *Client) interpret(subscriptionID string, message []byte) (url string, done bool, err error) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("skipping unparseable realtime message", "error", err)
		return "", false, nil
	}

	switch env.Type {
	case typeConnectionAck, typeKeepAlive:
		return "", false, nil
	case typeError, typeConnectionError:
		return "", true, &ProtocolError{Type: env.Type, Payload: string(env.Payload)}
	case typeComplete:
		if env.ID == subscriptionID {
			return "", true, ErrClosedBeforeFrame
		}
		return "", false, nil
	case typeData:
	default:
		c.logger.Debug("skipping realtime message", "type", env.Type)
		return "", false, nil
	}

	var payload dataPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.logger.Debug("skipping data message with unexpected payload", "error", err)
		return "", false, nil
	}
	if payload.Data == nil || payload.Data.Subscribe == nil || payload.Data.Subscribe.Data == nil {
		return "", false, nil
	}
	frame := payload.Data.Subscribe.Data
	if !frame.fullFrame() {
		c.logger.Debug("skipping non-full frame", "typename", frame.TypeName)
		return "", false, nil
	}
	return frame.Name, true, nil
}

// session owns the connection of one handshake so the caller can close
// it on timeout while the dial may still be in progress.
type session struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// attach records conn, or closes it if the session already ended.
func (s *session) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
