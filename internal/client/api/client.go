// Package api is the HTTP client for the fintrack backend: a REST surface
// under /rest/v1 with Postgres-style structured error payloads, a token
// endpoint under /auth/v1, and a websocket change-event feed under
// /realtime/v1. Raw failures are decoded here, once, into the tagged error
// types of internal/common; nothing above this package inspects response
// bodies.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// Client talks to one backend project, identified by its base URL and anon
// key. A bearer token set after sign-in scopes all subsequent calls to the
// authenticated owner.
type Client struct {
	baseURL string
	anonKey string
	httpc   *http.Client
	log     logging.Logger

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL, anonKey string, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the access token used for all subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.anonKey
}

// BaseURL exposes the configured endpoint (the realtime feed derives its
// websocket URL from it).
func (c *Client) BaseURL() string { return c.baseURL }

// do performs one HTTP exchange. Non-2xx responses are decoded into
// *common.WireError (or *common.AuthError for /auth/ paths) and returned as
// the error; transport failures are returned raw for the classifier.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp, strings.HasPrefix(path, "/auth/"))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorPayload is the union of the error body shapes the backend produces.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func decodeError(resp *http.Response, isAuth bool) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var p errorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		p.Message = strings.TrimSpace(string(raw))
	}
	if p.Message == "" {
		p.Message = resp.Status
	}

	if isAuth {
		return &common.AuthError{Status: resp.StatusCode, Code: p.Code, Message: p.Message}
	}
	return &common.WireError{Status: resp.StatusCode, Code: p.Code, Message: p.Message, Details: p.Details}
}
