// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bureau-foundation/webmessenger/lib/clock"
)

// defaultMaxReconnectAttempts bounds automatic reconnection before the
// session gives up with a terminal error.
const defaultMaxReconnectAttempts = 5

// ReconnectionHandler schedules bounded, exponentially backed off
// reconnection attempts on transport failure.
type ReconnectionHandler struct {
	clk         clock.Clock
	logger      *slog.Logger
	maxAttempts int

	mu       sync.Mutex
	attempts int
	policy   *backoff.ExponentialBackOff
	timer    *clock.Timer
}

// NewReconnectionHandler creates a reconnection handler. maxAttempts
// <= 0 selects the default.
func NewReconnectionHandler(clk clock.Clock, logger *slog.Logger, maxAttempts int) *ReconnectionHandler {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReconnectAttempts
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0
	policy.Reset()
	return &ReconnectionHandler{
		clk:         clk,
		logger:      logger,
		maxAttempts: maxAttempts,
		policy:      policy,
	}
}

// ShouldReconnect reports whether another attempt is allowed.
func (h *ReconnectionHandler) ShouldReconnect() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts < h.maxAttempts
}

// Reconnect schedules connect after the next backoff delay, replacing
// any attempt already scheduled.
func (h *ReconnectionHandler) Reconnect(connect func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.attempts++
	delay := h.policy.NextBackOff()
	h.logger.Info("scheduling reconnect",
		"attempt", h.attempts, "max_attempts", h.maxAttempts, "delay", delay)
	h.timer = h.clk.AfterFunc(delay, connect)
}

// Attempts returns the number of attempts scheduled since the last
// Clear.
func (h *ReconnectionHandler) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Clear cancels any scheduled attempt and resets the backoff. Called
// on successful configuration and on user-initiated disconnect.
func (h *ReconnectionHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.attempts = 0
	h.policy.Reset()
}
