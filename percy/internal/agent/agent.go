// Package agent talks to the local snapshot agent: a health probe and the
// snapshot upload. Uploads are never retried; a failed upload is reported to
// the caller, which logs it and moves on.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/domsnap/horosafe"
)

// Agent endpoints, relative to the agent address.
const (
	HealthcheckPath = "/percy/healthcheck"
	SnapshotPath    = "/percy/snapshot"
)

// Snapshot is the upload payload.
type Snapshot struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	DOMSnapshot      string `json:"domSnapshot"`
	ClientInfo       string `json:"clientInfo"`
	EnvironmentInfo  string `json:"environmentInfo"`
	Widths           []int  `json:"widths,omitempty"`
	MinHeight        int    `json:"minHeight,omitempty"`
	PercyCSS         string `json:"percyCSS,omitempty"`
	EnableJavaScript bool   `json:"enableJavaScript,omitempty"`
}

// StatusError is returned when the agent answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent: status %d", e.Code)
	}
	return fmt.Sprintf("agent: status %d: %s", e.Code, e.Body)
}

// Client posts snapshots to an agent.
type Client struct {
	addr   string
	client *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Client) { a.client = c }
}

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(a *Client) { a.client.Timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Client) { a.logger = l }
}

// New creates a Client for the agent at addr.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:   strings.TrimRight(addr, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Address returns the agent base URL.
func (c *Client) Address() string { return c.addr }

// Healthcheck reports whether the agent is up.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+HealthcheckPath, nil)
	if err != nil {
		return fmt.Errorf("agent: new request: %w", err)
	}
	return c.do(req)
}

// PostSnapshot uploads one snapshot. Any 2xx status is success.
func (c *Client) PostSnapshot(ctx context.Context, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("agent: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+SnapshotPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agent: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req); err != nil {
		return err
	}
	c.logger.Debug("agent: snapshot posted", "name", snap.Name, "bytes", len(body))
	return nil
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		c.logger.Debug("agent: response body", "path", req.URL.Path, "error", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return nil
}
