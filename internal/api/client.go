// Package api is the typed gateway to the Learny REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:8080/api"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 20 * time.Second
)

// Session is the identity the client authenticates with. It is cleared when
// the backend answers 401.
type Session interface {
	Token() string
	Clear() error
}

// Client is the API gateway. Every request carries the bearer token, a
// request id and the preferred language; every 401 clears the session.
type Client struct {
	baseURL string
	http    *http.Client
	session Session
	lang    string
}

// Option configures a Client.
type Option func(*Client)

// WithSession sets the identity used for the Authorization header.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = s }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLanguage sets the Accept-Language header.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &hookTransport{base: base, c: c}
	return c
}

// hookTransport runs the request and response hooks around every round trip.
type hookTransport struct {
	base http.RoundTripper
	c    *Client
}

func (t *hookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	t.c.prepare(req)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		slog.Error("backend unreachable", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, err
	}
	t.c.inspect(req, resp, time.Since(start))
	return resp, nil
}

// prepare is the request hook.
func (c *Client) prepare(req *http.Request) {
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	req.Header.Set("Accept", "application/json")
}

// inspect is the response hook.
func (c *Client) inspect(req *http.Request, resp *http.Response, took time.Duration) {
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", took,
		"request_id", req.Header.Get("X-Request-ID"),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		slog.Warn("token rejected, clearing session", attrs...)
		if c.session != nil {
			if err := c.session.Clear(); err != nil {
				slog.Error("failed to clear session", "error", err)
			}
		}
	case resp.StatusCode == http.StatusForbidden:
		slog.Warn("forbidden", attrs...)
	case resp.StatusCode >= 500:
		slog.Error("backend error", attrs...)
	default:
		slog.Debug("backend call", attrs...)
	}
}

// do sends a JSON request and decodes a JSON response into out (when
// non-nil). A caller expecting a body gets ErrEmptyResponse when there is none.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Message: errorMessage(data)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%s %s: %w", method, path, ErrEmptyResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}
