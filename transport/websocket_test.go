// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingListener collects callbacks on channels so tests can wait on
// them without races.
type recordingListener struct {
	opened   chan struct{}
	messages chan string
	closed   chan int
	failures chan FailureKind
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		opened:   make(chan struct{}, 1),
		messages: make(chan string, 16),
		closed:   make(chan int, 1),
		failures: make(chan FailureKind, 1),
	}
}

func (l *recordingListener) OnOpen()                     { l.opened <- struct{}{} }
func (l *recordingListener) OnMessage(text string)       { l.messages <- text }
func (l *recordingListener) OnClosing(int, string)       {}
func (l *recordingListener) OnClosed(code int, _ string) { l.closed <- code }
func (l *recordingListener) OnFailure(_ error, kind FailureKind) {
	select {
	case l.failures <- kind:
	default:
	}
}

func wait[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// echoServer upgrades the connection and echoes text frames until the
// client closes.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketEcho(t *testing.T) {
	server := echoServer(t)
	socket, err := NewWebSocket(WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("NewWebSocket: %v", err)
	}

	listener := newRecordingListener()
	socket.Open(listener)
	wait(t, listener.opened, "open")

	socket.Send(`{"action":"echo"}`)
	if got := wait(t, listener.messages, "echo"); got != `{"action":"echo"}` {
		t.Fatalf("echoed %q", got)
	}

	socket.Close(CloseNormalClosure, "done")
	if code := wait(t, listener.closed, "close"); code != CloseNormalClosure {
		t.Fatalf("close code = %d, want %d", code, CloseNormalClosure)
	}
}

func TestWebSocketConcurrentSends(t *testing.T) {
	server := echoServer(t)
	socket, err := NewWebSocket(WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("NewWebSocket: %v", err)
	}
	listener := newRecordingListener()
	socket.Open(listener)
	wait(t, listener.opened, "open")

	var group sync.WaitGroup
	for i := 0; i < 8; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			socket.Send("frame")
		}()
	}
	group.Wait()
	for i := 0; i < 8; i++ {
		wait(t, listener.messages, "echo")
	}
}

func TestWebSocketAccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "deployment disabled", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	socket, err := NewWebSocket(WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("NewWebSocket: %v", err)
	}
	listener := newRecordingListener()
	socket.Open(listener)
	if kind := wait(t, listener.failures, "failure"); kind != FailureAccessDenied {
		t.Fatalf("failure kind = %v, want access denied", kind)
	}
}

func TestWebSocketServerInitiatedClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		// Wait for the client's close response before dropping the
		// connection.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)

	socket, err := NewWebSocket(WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("NewWebSocket: %v", err)
	}
	listener := newRecordingListener()
	socket.Open(listener)
	wait(t, listener.opened, "open")
	if code := wait(t, listener.closed, "close"); code != websocket.CloseGoingAway {
		t.Fatalf("close code = %d, want %d", code, websocket.CloseGoingAway)
	}
}

func TestWebSocketOpenRequiresURL(t *testing.T) {
	if _, err := NewWebSocket(WebSocketConfig{}); err == nil {
		t.Fatal("empty URL accepted")
	}
}
