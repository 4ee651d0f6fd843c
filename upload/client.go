// Package upload posts the export document to the reports store.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnexpectedStatus is returned for non-2xx answers.
var ErrUnexpectedStatus = errors.New("unexpected upload status")

// Client uploads documents with a bearer token.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client posting to endpoint. An empty token sends no
// Authorization header.
func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload posts payload as JSON. runID is sent as X-Request-ID; a fresh ID
// is generated when it is empty.
func (c *Client) Upload(ctx context.Context, runID string, payload []byte) error {
	if runID == "" {
		runID = uuid.NewString()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", runID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)

	slog.Debug("document uploaded",
		slog.String("endpoint", c.endpoint),
		slog.String("request_id", runID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
