// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// ErrTokenExpired is returned when the bearer token has already expired
// before a request is attempted. Callers should refresh credentials and
// retry instead of burning a round trip on a guaranteed 401.
var ErrTokenExpired = errors.New("bearer token expired")

// Client talks to the sync endpoints. Token supplies the bearer JWT per
// request so credential refresh stays outside this package.
type Client struct {
	BaseURL string
	Token   func(context.Context) (string, error)
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewClient builds a transport client. A nil logger falls back to
// slog.Default(); the HTTP client defaults to one with a 30s timeout.
func NewClient(baseURL string, token func(context.Context) (string, error), logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// UploadOffline submits a batch of offline-created experiences and entries.
func (c *Client) UploadOffline(ctx context.Context, req *ebnis.UploadRequest) (*ebnis.UploadResponse, error) {
	var resp ebnis.UploadResponse
	if err := c.post(ctx, "/sync/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateExperiences submits a batch of pending edits and decodes the tagged
// outcome union.
func (c *Client) UpdateExperiences(ctx context.Context, req *ebnis.UpdateExperiencesRequest) (ebnis.UpdateExperiencesResult, error) {
	body, err := c.postRaw(ctx, "/sync/update-experiences", req)
	if err != nil {
		return nil, err
	}
	result, err := ebnis.UnmarshalUpdateExperiencesResult(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode update-experiences response: %w", err)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	body, err := c.postRaw(ctx, path, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) postRaw(ctx context.Context, path string, req any) ([]byte, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// bearer fetches the token and rejects it locally when its exp claim has
// already passed. The signature is not verified here; that is the server's
// job.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.Token == nil {
		return "", fmt.Errorf("token source not configured")
	}
	token, err := c.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get JWT token: %w", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Opaque tokens pass through; the server decides.
		c.logger.Debug("bearer token is not a parseable JWT", "error", err)
		return token, nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if exp.Before(time.Now()) {
		return "", ErrTokenExpired
	}
	return token, nil
}
