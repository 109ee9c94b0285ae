// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/webmessenger/lib/clock"
	"github.com/bureau-foundation/webmessenger/wire"
)

// Rate limits for lightweight signalling requests.
const (
	healthCheckCoolDown     = 30 * time.Second
	typingIndicatorCoolDown = 5 * time.Second
)

// cooldownElapsed reports whether enough time passed since the last
// send. A zero lastSent always allows the send.
func cooldownElapsed(now, lastSent time.Time, cooldown time.Duration) bool {
	return lastSent.IsZero() || now.Sub(lastSent) >= cooldown
}

// HealthCheckProvider encodes health-check echo requests, rate-limited
// to one per 30 seconds.
type HealthCheckProvider struct {
	clk    clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	lastSent time.Time
}

// NewHealthCheckProvider creates a health-check provider.
func NewHealthCheckProvider(clk clock.Clock, logger *slog.Logger) *HealthCheckProvider {
	return &HealthCheckProvider{clk: clk, logger: logger}
}

// EncodeRequest returns the encoded echo request, or "" when the
// cooldown has not elapsed.
func (p *HealthCheckProvider) EncodeRequest(token string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clk.Now()
	if !cooldownElapsed(now, p.lastSent, healthCheckCoolDown) {
		p.logger.Debug("health check suppressed by cooldown")
		return ""
	}
	p.lastSent = now
	return encodeRequest(p.logger, wire.NewEchoRequest(token))
}

// Clear resets the cooldown.
func (p *HealthCheckProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSent = time.Time{}
}

// UserTypingProvider encodes typing-indicator requests, rate-limited
// to one per 5 seconds and gated on the deployment feature toggle.
type UserTypingProvider struct {
	clk     clock.Clock
	logger  *slog.Logger
	enabled func() bool

	mu       sync.Mutex
	lastSent time.Time
}

// NewUserTypingProvider creates a typing-indicator provider. enabled
// is consulted on every request.
func NewUserTypingProvider(clk clock.Clock, logger *slog.Logger, enabled func() bool) *UserTypingProvider {
	return &UserTypingProvider{clk: clk, logger: logger, enabled: enabled}
}

// EncodeRequest returns the encoded typing event, or "" when the
// feature is disabled or the cooldown has not elapsed.
func (p *UserTypingProvider) EncodeRequest(token string) string {
	if !p.enabled() {
		p.logger.Debug("typing indicator disabled by deployment")
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clk.Now()
	if !cooldownElapsed(now, p.lastSent, typingIndicatorCoolDown) {
		p.logger.Debug("typing indicator suppressed by cooldown")
		return ""
	}
	p.lastSent = now
	return encodeRequest(p.logger, wire.NewUserTypingRequest(token))
}

// Clear resets the cooldown. Called when the agent responds, so the
// next keystroke signals immediately.
func (p *UserTypingProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSent = time.Time{}
}

func encodeRequest(logger *slog.Logger, request any) string {
	data, err := json.Marshal(request)
	if err != nil {
		logger.Error("failed to encode request", "error", err)
		return ""
	}
	return string(data)
}
