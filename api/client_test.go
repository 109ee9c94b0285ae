// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bureau-foundation/webmessenger/wire"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		BaseURL:      server.URL,
		DeploymentID: "dep-1",
		Logger:       slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{DeploymentID: "dep-1"}); err == nil {
		t.Fatal("missing BaseURL accepted")
	}
	if _, err := NewClient(Config{BaseURL: "https://api.example.com"}); err == nil {
		t.Fatal("missing DeploymentID accepted")
	}
}

func TestGetMessages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/webmessaging/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer jwt-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		query := r.URL.Query()
		if query.Get("pageNumber") != "2" || query.Get("pageSize") != "25" {
			t.Errorf("query = %v", query)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"id": "m-1", "type": "Text", "text": "hi", "direction": "Inbound"},
			},
			"total": 26, "pageNumber": 2, "pageSize": 25, "pageCount": 2,
		})
	})
	client := testClient(t, mux)

	page, err := client.GetMessages(context.Background(), "jwt-1", 2, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if page.Total != 26 || len(page.Entities) != 1 || page.Entities[0].ID != "m-1" {
		t.Fatalf("page = %+v", page)
	}
}

func TestGetMessagesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/webmessaging/messages", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	})
	client := testClient(t, mux)

	_, err := client.GetMessages(context.Background(), "jwt-1", 1, 25)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want 404 *Error", err)
	}
}

func TestUploadFile(t *testing.T) {
	var body []byte
	var tagging string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /upload/att-1", func(w http.ResponseWriter, r *http.Request) {
		tagging = r.Header.Get("x-amz-tagging")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := testClient(t, http.NotFoundHandler())

	var progress []float64
	data := []byte("attachment bytes")
	err := client.UploadFile(context.Background(), wire.PresignedURLResponse{
		AttachmentID: "att-1",
		URL:          server.URL + "/upload/att-1",
		Headers:      map[string]string{"x-amz-tagging": "organizationId=org-1"},
	}, data, func(p float64) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if string(body) != string(data) {
		t.Fatalf("uploaded %q, want %q", body, data)
	}
	if tagging != "organizationId=org-1" {
		t.Fatalf("x-amz-tagging = %q", tagging)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress = %v, want final 100", progress)
	}
}

func TestUploadFileRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /upload/att-1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := testClient(t, http.NotFoundHandler())

	err := client.UploadFile(context.Background(), wire.PresignedURLResponse{
		AttachmentID: "att-1",
		URL:          server.URL + "/upload/att-1",
	}, []byte("bytes"), nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("error = %v, want 403 *Error", err)
	}
}

func TestFetchAuthJWT(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/webdeployments/token/oauthcodegrantjwtexchange", func(w http.ResponseWriter, r *http.Request) {
		var request map[string]any
		json.NewDecoder(r.Body).Decode(&request)
		if request["deploymentId"] != "dep-1" {
			t.Errorf("deploymentId = %v", request["deploymentId"])
		}
		oauth := request["oauth"].(map[string]any)
		if oauth["code"] != "code-1" || oauth["redirectUri"] != "https://app.example.com/cb" || oauth["codeVerifier"] != "verifier-1" {
			t.Errorf("oauth = %v", oauth)
		}
		json.NewEncoder(w).Encode(map[string]string{"jwt": "jwt-1", "refreshToken": "refresh-1"})
	})
	client := testClient(t, mux)

	auth, err := client.FetchAuthJWT(context.Background(), "code-1", "https://app.example.com/cb", "verifier-1")
	if err != nil {
		t.Fatalf("FetchAuthJWT: %v", err)
	}
	if auth.JWT != "jwt-1" || auth.RefreshToken != "refresh-1" {
		t.Fatalf("auth = %+v", auth)
	}
}

func TestLogout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v2/webdeployments/token/revoke", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer jwt-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	client := testClient(t, mux)

	if err := client.Logout(context.Background(), "jwt-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestFetchDeploymentConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webdeployments/v1/deployments/dep-1/config.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "dep-1",
			"messenger": map[string]any{
				"enabled": true,
				"apps": map[string]any{
					"conversations": map[string]any{"showUserTypingIndicator": true},
				},
			},
		})
	})
	client := testClient(t, mux)

	config, err := client.FetchDeploymentConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchDeploymentConfig: %v", err)
	}
	if config.ID != "dep-1" || !config.Messenger.Enabled || !config.TypingIndicatorEnabled() {
		t.Fatalf("config = %+v", config)
	}
}
