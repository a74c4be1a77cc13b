// Package api is the HTTP client every backend call goes through. It attaches
// the session token, defaults the content type, classifies failures, and
// reacts to a 401 by expiring the session and sending the user to the login
// view.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/logger"
	"github.com/google/uuid"
)

// DefaultTimeout applies when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the current bearer token, "" when logged out
type TokenSource interface {
	Token() string
}

// Expirer clears the session after the backend rejected its token
type Expirer interface {
	Expire()
}

// Navigator is the view state the 401 reaction consults and moves
type Navigator interface {
	CurrentPath() string
	Redirect(path string)
}

// Config holds client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the client logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client is the API client wrapper
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logger.Logger

	mu      sync.RWMutex
	tokens  TokenSource
	expirer Expirer
	nav     Navigator

	// serialises the check-and-act of the 401 reaction
	expireMu sync.Mutex
}

// NewClient creates a client for cfg.BaseURL
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "topia-client"
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  ua,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind attaches the session the client authenticates with and expires on 401
func (c *Client) Bind(tokens TokenSource, expirer Expirer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
	c.expirer = expirer
}

// SetNavigator attaches the view state used by the 401 reaction
func (c *Client) SetNavigator(nav Navigator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nav = nav
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewRequest builds a request for path relative to the API root
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}

// Do sends req. 2xx responses are returned for the caller to read and close.
// Any other status is read, closed and returned as *Error; transport failures
// come back as *Error with KindNetwork.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.prepare(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("HTTP request failed",
			logger.F("method", req.Method),
			logger.F("path", req.URL.Path),
			logger.F("request_id", req.Header.Get("X-Request-ID")),
			logger.Err(err))
		return nil, NewNetworkError(err)
	}

	c.log.Debug("HTTP Response",
		logger.F("method", req.Method),
		logger.F("path", req.URL.Path),
		logger.F("status", resp.StatusCode),
		logger.F("request_id", req.Header.Get("X-Request-ID")),
		logger.F("duration", time.Since(start).String()))

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, NewStatusError(resp.StatusCode, body)
	}
	return resp, nil
}

// prepare applies the outgoing-request rules
func (c *Client) prepare(req *http.Request) {
	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()

	if tokens != nil {
		if token := tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	// Multipart and binary bodies arrive with their own content type
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	req.Header.Set("User-Agent", c.userAgent)
}

// handleUnauthorized expires the session unless the user is already on the
// login view. The failed request is not retried.
func (c *Client) handleUnauthorized() {
	c.mu.RLock()
	expirer, nav := c.expirer, c.nav
	c.mu.RUnlock()

	c.expireMu.Lock()
	defer c.expireMu.Unlock()

	if nav != nil && guard.IsLoginPath(nav.CurrentPath()) {
		return
	}

	c.log.Info("Session rejected by backend, forcing re-authentication")
	if expirer != nil {
		expirer.Expire()
	}
	if nav != nil {
		nav.Redirect(guard.LoginPath)
	}
}

// JSON sends in as a JSON body (nil for none) and decodes the response into
// out (nil to discard).
func (c *Client) JSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// File is one file part of a multipart upload
type File struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Upload sends fields and files as multipart/form-data
func (c *Client) Upload(ctx context.Context, method, path string, fields map[string]string, files []File, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to encode form: %w", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("failed to encode form: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := c.NewRequest(ctx, method, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
