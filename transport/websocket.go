// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Structured messages with attachment
	// metadata stay well under this.
	maxMessageSize = 64 * 1024
)

// Compile-time interface check.
var _ Socket = (*WebSocket)(nil)

// WebSocketConfig holds configuration for creating a WebSocket.
type WebSocketConfig struct {
	// URL is the wss:// endpoint of the messaging gateway.
	URL string
	// Dialer is used for the connection handshake. If nil,
	// websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// WebSocket is the production Socket implementation on
// gorilla/websocket. A single read-pump goroutine delivers inbound
// frames and the terminal callback; writes are serialized by a mutex
// with a write deadline.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	listener Listener
	done     chan struct{}
}

// NewWebSocket creates a WebSocket for the given gateway URL.
func NewWebSocket(config WebSocketConfig) (*WebSocket, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transport: URL is required")
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{url: config.URL, dialer: dialer, logger: logger}, nil
}

// Open dials the gateway in a background goroutine and starts the read
// pump on success. The outcome arrives as OnOpen or OnFailure.
func (s *WebSocket) Open(listener Listener) {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		go listener.OnFailure(fmt.Errorf("transport: socket already open"), FailureError)
		return
	}
	s.listener = listener
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		conn, response, err := s.dialer.Dial(s.url, nil)
		if err != nil {
			listener.OnFailure(fmt.Errorf("transport: dial %s: %w", s.url, err), classifyDialError(err, response))
			return
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		conn.SetCloseHandler(func(code int, text string) error {
			listener.OnClosing(code, text)
			message := websocket.FormatCloseMessage(code, "")
			_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return nil
		})

		go s.pingLoop(conn, done)
		listener.OnOpen()
		s.readPump(conn, listener, done)
	}()
}

// Send writes one text frame. Write errors are reported through
// OnFailure from a separate goroutine so callers never re-enter their
// own locks.
func (s *WebSocket) Send(text string) {
	s.mu.Lock()
	conn := s.conn
	listener := s.listener
	s.mu.Unlock()

	if conn == nil {
		if listener != nil {
			go listener.OnFailure(fmt.Errorf("transport: send on closed socket"), FailureError)
		}
		return
	}

	s.mu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteMessage(websocket.TextMessage, []byte(text))
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		go listener.OnFailure(fmt.Errorf("transport: write: %w", err), FailureError)
	}
}

// Close sends a close frame. The terminal OnClosed callback arrives
// from the read pump once the peer completes the handshake; if the
// peer never answers, the read deadline fires and the failure path
// force-closes.
func (s *WebSocket) Close(code int, reason string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	message := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait)); err != nil {
		s.logger.Warn("websocket close frame write failed", "error", err)
	}
}

// readPump delivers inbound frames until the connection ends, then
// delivers exactly one terminal callback.
func (s *WebSocket) readPump(conn *websocket.Conn, listener Listener, done chan struct{}) {
	defer func() {
		close(done)
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				listener.OnClosed(closeErr.Code, closeErr.Text)
			} else {
				listener.OnFailure(fmt.Errorf("transport: read: %w", err), classifyNetError(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		listener.OnMessage(string(payload))
	}
}

// pingLoop keeps the connection alive until the read pump exits.
func (s *WebSocket) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
	}
}

// classifyDialError maps a handshake failure to a FailureKind. A 401
// or 403 upgrade response means the deployment rejected the client;
// an unreachable network means the device is offline.
func classifyDialError(err error, response *http.Response) FailureKind {
	if response != nil && (response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden) {
		return FailureAccessDenied
	}
	return classifyNetError(err)
}

func classifyNetError(err error) FailureKind {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var dnsErr *net.DNSError
		if errors.As(opErr.Err, &dnsErr) && dnsErr.IsNotFound {
			return FailureNetworkDisabled
		}
		if opErr.Op == "dial" && !opErr.Temporary() {
			return FailureNetworkDisabled
		}
	}
	return FailureError
}
