// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"testing"
	"time"

	"github.com/bureau-foundation/webmessenger/lib/clock"
)

func TestReconnectionHandlerBackoff(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	handler := NewReconnectionHandler(clk, testLogger(), 5)

	fired := 0
	handler.Reconnect(func() { fired++ })
	if handler.Attempts() != 1 {
		t.Fatalf("attempts = %d, want 1", handler.Attempts())
	}
	clk.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatal("first attempt fired before its delay elapsed")
	}
	clk.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// The second attempt backs off to twice the delay.
	handler.Reconnect(func() { fired++ })
	clk.Advance(time.Second)
	if fired != 1 {
		t.Fatal("second attempt fired after only the initial delay")
	}
	clk.Advance(time.Second)
	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
}

func TestReconnectionHandlerBoundedAttempts(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	handler := NewReconnectionHandler(clk, testLogger(), 2)

	if !handler.ShouldReconnect() {
		t.Fatal("fresh handler refuses to reconnect")
	}
	handler.Reconnect(func() {})
	if !handler.ShouldReconnect() {
		t.Fatal("handler refuses second attempt")
	}
	handler.Reconnect(func() {})
	if handler.ShouldReconnect() {
		t.Fatal("handler allows attempts past the bound")
	}
}

func TestReconnectionHandlerClear(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	handler := NewReconnectionHandler(clk, testLogger(), 2)

	fired := 0
	handler.Reconnect(func() { fired++ })
	handler.Reconnect(func() { fired++ })
	if handler.ShouldReconnect() {
		t.Fatal("handler allows attempts past the bound")
	}

	handler.Clear()
	clk.Advance(time.Minute)
	if fired != 0 {
		t.Fatal("cleared timer still fired")
	}
	if handler.Attempts() != 0 || !handler.ShouldReconnect() {
		t.Fatal("Clear did not reset the attempt budget")
	}

	// The backoff starts over after Clear.
	handler.Reconnect(func() { fired++ })
	clk.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1 after reset backoff", fired)
	}
}
