// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/lib/clock"
)

// NoJWT is returned by JWT when no usable auth token is held.
const NoJWT = ""

// AuthHandler holds the OAuth JWT for authenticated sessions and
// drives the exchange, refresh, and logout endpoints.
type AuthHandler struct {
	api         *api.Client
	clk         clock.Clock
	logger      *slog.Logger
	events      *EventHandler
	autoRefresh bool

	mu           sync.Mutex
	jwt          string
	refreshToken string
}

// NewAuthHandler creates an auth handler. With autoRefresh set, a held
// JWT past its expiry claim is treated as absent, forcing a refresh
// before the next configure.
func NewAuthHandler(apiClient *api.Client, clk clock.Clock, events *EventHandler, logger *slog.Logger, autoRefresh bool) *AuthHandler {
	return &AuthHandler{
		api:         apiClient,
		clk:         clk,
		logger:      logger,
		events:      events,
		autoRefresh: autoRefresh,
	}
}

// JWT returns the held auth token, or NoJWT when none is held or the
// held one is expired and auto-refresh is enabled.
func (h *AuthHandler) JWT() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.jwt == NoJWT {
		return NoJWT
	}
	if h.autoRefresh && jwtExpired(h.jwt, h.clk) {
		h.logger.Debug("held jwt is expired")
		return NoJWT
	}
	return h.jwt
}

// jwtExpired checks the token's exp claim without verifying the
// signature; the gateway is the authority, this only avoids a round
// trip that is known to fail. A token that does not parse is handed to
// the gateway as-is.
func jwtExpired(token string, clk clock.Clock) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return clk.Now().After(claims.ExpiresAt.Time)
}

// Authorize exchanges an OAuth authorization code for a JWT. Success
// is announced with AuthorizedEvent, failure with an AuthFailed error
// event. A cancelled exchange is logged and returned without an event.
func (h *AuthHandler) Authorize(ctx context.Context, authCode, redirectURI, codeVerifier string) error {
	result, err := h.api.FetchAuthJWT(ctx, authCode, redirectURI, codeVerifier)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Warn("authorize cancelled", "error", err)
			return err
		}
		h.logger.Error("authorize failed", "error", err)
		h.events.OnEvent(ErrorEvent{
			Code:             CodeAuthFailed,
			Message:          err.Error(),
			CorrectiveAction: CorrectiveActionReauthenticate,
		})
		return &AuthError{Code: CodeAuthFailed, Message: err.Error()}
	}
	h.mu.Lock()
	h.jwt = result.JWT
	h.refreshToken = result.RefreshToken
	h.mu.Unlock()
	h.events.OnEvent(AuthorizedEvent{})
	return nil
}

// Refresh trades the refresh token for a fresh JWT.
func (h *AuthHandler) Refresh(ctx context.Context) error {
	h.mu.Lock()
	refreshToken := h.refreshToken
	h.mu.Unlock()
	if refreshToken == "" {
		return &AuthError{Code: CodeRefreshAuthTokenFailure, Message: "no refresh token held"}
	}
	result, err := h.api.RefreshAuthJWT(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		h.logger.Error("token refresh failed", "error", err)
		return &AuthError{Code: CodeRefreshAuthTokenFailure, Message: err.Error()}
	}
	h.mu.Lock()
	h.jwt = result.JWT
	if result.RefreshToken != "" {
		h.refreshToken = result.RefreshToken
	}
	h.mu.Unlock()
	h.logger.Debug("auth jwt refreshed")
	return nil
}

// Logout revokes the session's JWT. A 401 triggers one refresh-then-
// retry before giving up. Failure is announced with an
// AuthLogoutFailed error event; the logout confirmation itself arrives
// over the socket.
func (h *AuthHandler) Logout(ctx context.Context) error {
	h.mu.Lock()
	token := h.jwt
	h.mu.Unlock()

	err := h.api.Logout(ctx, token)
	var apiErr *api.Error
	if err != nil && errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
		if refreshErr := h.Refresh(ctx); refreshErr == nil {
			h.mu.Lock()
			token = h.jwt
			h.mu.Unlock()
			err = h.api.Logout(ctx, token)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Warn("logout cancelled", "error", err)
			return err
		}
		h.logger.Error("logout failed", "error", err)
		h.events.OnEvent(ErrorEvent{
			Code:             CodeAuthLogoutFailed,
			Message:          err.Error(),
			CorrectiveAction: logoutCorrectiveAction(err),
		})
		return &AuthError{Code: CodeAuthLogoutFailed, Message: err.Error()}
	}
	return nil
}

func logoutCorrectiveAction(err error) CorrectiveAction {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return ErrorCodeFromHTTP(apiErr.StatusCode).CorrectiveAction()
	}
	return CorrectiveActionUnknown
}

// Clear drops the held tokens. Called when the server broadcasts a
// logout.
func (h *AuthHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jwt = ""
	h.refreshToken = ""
}

// setTokens is a test hook.
func (h *AuthHandler) setTokens(jwt, refreshToken string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jwt = jwt
	h.refreshToken = refreshToken
}
