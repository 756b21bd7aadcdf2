// Package apiclient talks to the church administration REST API.
package apiclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ecclesia/ecclesia/internal/platform/httpx"
)

const maxResponseBytes = 16 << 20

// Observer records remote call outcomes. Implemented by observability.Metrics.
type Observer interface {
	ObserveRemote(resource, method string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Cache      *Cache
	Logger     *slog.Logger
	Observer   Observer
}

// Client performs authenticated JSON requests against the API.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    *Cache
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
	group    singleflight.Group
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		cache:    opts.Cache,
		logger:   logger,
		observer: opts.Observer,
		timeout:  timeout,
	}
}

// Cache exposes the collection cache, which may be nil.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Error is returned for non-2xx responses. It unwraps to one of the httpx
// sentinel errors.
type Error struct {
	Status  int
	Method  string
	Path    string
	Message string
	kind    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *Error) Unwrap() error { return e.kind }

// ServerMessage extracts the API's own message from err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

type tokenContextKey struct{}

// WithToken attaches a bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token carried by ctx.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

func scopeOf(ctx context.Context) string {
	token := TokenFromContext(ctx)
	if token == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(path, method, 0, time.Since(start))
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(path, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}
	if kind := httpx.StatusError(resp.StatusCode); kind != nil {
		apiErr := &Error{
			Status:  resp.StatusCode,
			Method:  method,
			Path:    path,
			Message: extractMessage(data),
			kind:    kind,
		}
		c.logger.Debug("api request failed", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode))
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) observe(path, method string, status int, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRemote(resourceLabel(path), method, status, elapsed)
}

func resourceLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

func extractMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	for _, candidate := range []string{body.Message, body.Error, body.Detail} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return ""
}

// invalidate bumps the collection cache after a successful mutation.
func (c *Client) invalidate(ctx context.Context) {
	if err := c.cache.Bump(ctx); err != nil {
		c.logger.Warn("bump collection cache", slog.Any("error", err))
	}
}
