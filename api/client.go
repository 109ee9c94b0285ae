// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bureau-foundation/webmessenger/wire"
)

// DefaultPageSize is the history page size used when the caller does
// not specify one.
const DefaultPageSize = 25

// Gateway endpoint paths.
const (
	messagesPath    = "/api/v2/webmessaging/messages"
	jwtExchangePath = "/api/v2/webdeployments/token/oauthcodegrantjwtexchange"
	jwtRefreshPath  = "/api/v2/webdeployments/token/refresh"
	jwtRevokePath   = "/api/v2/webdeployments/token/revoke"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the gateway API origin (e.g. "https://api.example.com").
	BaseURL string
	// DeploymentID identifies the messenger deployment.
	DeploymentID string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client calls the messaging gateway's HTTP endpoints.
type Client struct {
	baseURL      string
	deploymentID string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a gateway API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if config.DeploymentID == "" {
		return nil, fmt.Errorf("api: DeploymentID is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		deploymentID: config.DeploymentID,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Error is a structured non-2xx response from the gateway.
type Error struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Body is the raw response body, useful for error text matching.
	Body string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Body)
}

// AuthJWT is returned by the JWT exchange and refresh endpoints.
type AuthJWT struct {
	JWT          string `json:"jwt"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// GetMessages fetches one page of conversation history, newest pages
// first. pageNumber starts at 1.
func (c *Client) GetMessages(ctx context.Context, jwt string, pageNumber, pageSize int) (*wire.MessageEntityList, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	query := url.Values{}
	query.Set("pageNumber", strconv.Itoa(pageNumber))
	query.Set("pageSize", strconv.Itoa(pageSize))

	body, err := c.doRequest(ctx, http.MethodGet, messagesPath+"?"+query.Encode(), jwt, nil)
	if err != nil {
		return nil, fmt.Errorf("api: history fetch failed: %w", err)
	}

	var page wire.MessageEntityList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("api: failed to parse history page: %w", err)
	}
	return &page, nil
}

// UploadFile PUTs attachment bytes to a pre-signed URL with the
// headers the server supplied. progress, when non-nil, receives the
// percentage of bytes written (0..100) as the upload proceeds.
func (c *Client) UploadFile(ctx context.Context, presigned wire.PresignedURLResponse, data []byte, progress func(float64)) error {
	reader := io.Reader(bytes.NewReader(data))
	if progress != nil {
		reader = &progressReader{inner: reader, total: int64(len(data)), report: progress}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.URL, reader)
	if err != nil {
		return fmt.Errorf("api: failed to create upload request: %w", err)
	}
	request.ContentLength = int64(len(data))
	for key, value := range presigned.Headers {
		request.Header.Set(key, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("api: upload to %s failed: %w", presigned.URL, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("api: failed to read upload response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &Error{StatusCode: response.StatusCode, Body: string(responseBody)}
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

// FetchAuthJWT exchanges an OAuth authorization code for a JWT.
func (c *Client) FetchAuthJWT(ctx context.Context, authCode, redirectURI, codeVerifier string) (*AuthJWT, error) {
	requestBody := map[string]any{
		"deploymentId": c.deploymentID,
		"oauth": map[string]string{
			"code":         authCode,
			"redirectUri":  redirectURI,
			"codeVerifier": codeVerifier,
		},
	}
	body, err := c.doRequest(ctx, http.MethodPost, jwtExchangePath, "", requestBody)
	if err != nil {
		return nil, fmt.Errorf("api: jwt exchange failed: %w", err)
	}
	var auth AuthJWT
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("api: failed to parse jwt response: %w", err)
	}
	return &auth, nil
}

// RefreshAuthJWT trades a refresh token for a fresh JWT.
func (c *Client) RefreshAuthJWT(ctx context.Context, refreshToken string) (*AuthJWT, error) {
	requestBody := map[string]string{"refreshToken": refreshToken}
	body, err := c.doRequest(ctx, http.MethodPost, jwtRefreshPath, "", requestBody)
	if err != nil {
		return nil, fmt.Errorf("api: jwt refresh failed: %w", err)
	}
	var auth AuthJWT
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("api: failed to parse refresh response: %w", err)
	}
	return &auth, nil
}

// Logout revokes the authenticated session server-side.
func (c *Client) Logout(ctx context.Context, jwt string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, jwtRevokePath, jwt, nil); err != nil {
		return fmt.Errorf("api: logout failed: %w", err)
	}
	return nil
}

// FetchDeploymentConfig downloads the deployment's published
// configuration snapshot from the deployment CDN.
func (c *Client) FetchDeploymentConfig(ctx context.Context) (*wire.DeploymentConfig, error) {
	path := "/webdeployments/v1/deployments/" + c.deploymentID + "/config.json"
	body, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, fmt.Errorf("api: deployment config fetch failed: %w", err)
	}
	var config wire.DeploymentConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, fmt.Errorf("api: failed to parse deployment config: %w", err)
	}
	return &config, nil
}

// doRequest performs an HTTP request against the gateway and returns
// the response body. On 2xx, returns the body. On other statuses,
// returns an *Error. jwt may be empty for unauthenticated endpoints.
func (c *Client) doRequest(ctx context.Context, method, path, jwt string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("api: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if jwt != "" {
		request.Header.Set("Authorization", "bearer "+jwt)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("api: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}
	return responseBody, &Error{StatusCode: response.StatusCode, Body: string(responseBody)}
}

// progressReader reports upload progress as a percentage of total
// bytes read by the HTTP transport.
type progressReader struct {
	inner  io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		r.report(float64(r.read) / float64(r.total) * 100)
	}
	return n, err
}
