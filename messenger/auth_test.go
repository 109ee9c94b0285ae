// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/lib/clock"
)

type authFixture struct {
	handler *AuthHandler
	clk     *clock.FakeClock
	events  chan Event
}

func newAuthFixture(t *testing.T, mux *http.ServeMux, autoRefresh bool) *authFixture {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	apiClient, err := api.NewClient(api.Config{
		BaseURL:      server.URL,
		DeploymentID: "dep-1",
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("creating api client: %v", err)
	}
	fixture := &authFixture{
		clk:    clock.Fake(time.Unix(1700000000, 0)),
		events: make(chan Event, 16),
	}
	eventHandler := NewEventHandler(testLogger())
	eventHandler.SetListener(func(event Event) { fixture.events <- event })
	fixture.handler = NewAuthHandler(apiClient, fixture.clk, eventHandler, testLogger(), autoRefresh)
	return fixture
}

func TestAuthorizeStoresTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/webdeployments/token/oauthcodegrantjwtexchange", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["deploymentId"] != "dep-1" {
			t.Errorf("deploymentId = %v", body["deploymentId"])
		}
		json.NewEncoder(w).Encode(map[string]string{"jwt": "jwt-1", "refreshToken": "refresh-1"})
	})
	fixture := newAuthFixture(t, mux, false)

	if err := fixture.handler.Authorize(context.Background(), "code-1", "https://app.example.com/cb", "verifier"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if _, ok := waitFor(t, fixture.events, "authorized event").(AuthorizedEvent); !ok {
		t.Fatal("expected AuthorizedEvent")
	}
	if fixture.handler.JWT() != "jwt-1" {
		t.Fatalf("JWT = %q, want jwt-1", fixture.handler.JWT())
	}
}

func TestAuthorizeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/webdeployments/token/oauthcodegrantjwtexchange", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad code", http.StatusBadRequest)
	})
	fixture := newAuthFixture(t, mux, false)

	err := fixture.handler.Authorize(context.Background(), "bad", "https://app.example.com/cb", "verifier")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != CodeAuthFailed {
		t.Fatalf("Authorize error = %v, want AuthFailed", err)
	}
	event, ok := waitFor(t, fixture.events, "error event").(ErrorEvent)
	if !ok || event.Code != CodeAuthFailed {
		t.Fatalf("event = %+v, want AuthFailed error", event)
	}
	if fixture.handler.JWT() != NoJWT {
		t.Fatal("failed authorize left a jwt behind")
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	fixture := newAuthFixture(t, http.NewServeMux(), false)

	err := fixture.handler.Refresh(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != CodeRefreshAuthTokenFailure {
		t.Fatalf("Refresh error = %v, want RefreshAuthTokenFailure", err)
	}
}

func TestRefreshReplacesJWT(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/webdeployments/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refreshToken"] != "refresh-1" {
			t.Errorf("refreshToken = %q", body["refreshToken"])
		}
		json.NewEncoder(w).Encode(map[string]string{"jwt": "jwt-2"})
	})
	fixture := newAuthFixture(t, mux, false)
	fixture.handler.setTokens("jwt-1", "refresh-1")

	if err := fixture.handler.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fixture.handler.JWT() != "jwt-2" {
		t.Fatalf("JWT = %q, want jwt-2", fixture.handler.JWT())
	}
}

func TestExpiredJWTTreatedAsAbsent(t *testing.T) {
	now := time.Unix(1700000000, 0)
	expired := signedTestJWT(t, now.Add(-time.Hour))
	valid := signedTestJWT(t, now.Add(time.Hour))

	fixture := newAuthFixture(t, http.NewServeMux(), true)
	fixture.handler.setTokens(expired, "refresh-1")
	if fixture.handler.JWT() != NoJWT {
		t.Fatal("expired jwt not treated as absent with auto-refresh on")
	}
	fixture.handler.setTokens(valid, "refresh-1")
	if fixture.handler.JWT() != valid {
		t.Fatal("valid jwt rejected")
	}

	// Without auto-refresh the gateway is the authority.
	fixture = newAuthFixture(t, http.NewServeMux(), false)
	fixture.handler.setTokens(expired, "refresh-1")
	if fixture.handler.JWT() != expired {
		t.Fatal("expired jwt withheld with auto-refresh off")
	}
}

func signedTestJWT(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "guest-1",
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test jwt: %v", err)
	}
	return signed
}

func TestLogoutRetriesAfter401(t *testing.T) {
	logouts := 0
	refreshes := 0
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v2/webdeployments/token/revoke", func(w http.ResponseWriter, r *http.Request) {
		logouts++
		if r.Header.Get("Authorization") != "bearer jwt-2" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v2/webdeployments/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		json.NewEncoder(w).Encode(map[string]string{"jwt": "jwt-2"})
	})
	fixture := newAuthFixture(t, mux, false)
	fixture.handler.setTokens("jwt-1", "refresh-1")

	if err := fixture.handler.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if logouts != 2 || refreshes != 1 {
		t.Fatalf("logouts = %d, refreshes = %d, want 2 and 1", logouts, refreshes)
	}
}

func TestLogoutFailureEmitsEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v2/webdeployments/token/revoke", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	fixture := newAuthFixture(t, mux, false)
	fixture.handler.setTokens("jwt-1", "refresh-1")

	err := fixture.handler.Logout(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != CodeAuthLogoutFailed {
		t.Fatalf("Logout error = %v, want AuthLogoutFailed", err)
	}
	event, ok := waitFor(t, fixture.events, "error event").(ErrorEvent)
	if !ok || event.Code != CodeAuthLogoutFailed {
		t.Fatalf("event = %+v, want AuthLogoutFailed error", event)
	}
}
