package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTimeout indicates a rendering request exceeded the per-attempt timeout.
	ErrTimeout = errors.New("gotenberg: timeout")
	// ErrInvalidResponse indicates Gotenberg answered with a non-success status.
	ErrInvalidResponse = errors.New("gotenberg: invalid response")
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 1
)

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retries: defaultRetries,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts raw HTML into a PDF document using Gotenberg.
func (c *Client) RenderHTML(ctx context.Context, html string, paper PaperSize) ([]byte, error) {
	fields := map[string]string{}
	if paper.Width > 0 && paper.Height > 0 {
		fields["paperWidth"] = strconv.FormatFloat(paper.Width, 'f', -1, 64)
		fields["paperHeight"] = strconv.FormatFloat(paper.Height, 'f', -1, 64)
		fields["marginTop"] = "0"
		fields["marginBottom"] = "0"
		fields["marginLeft"] = "0"
		fields["marginRight"] = "0"
		fields["printBackground"] = "true"
	}
	return c.post(ctx, "/forms/chromium/convert/html", html, fields)
}

// PaperSize is a page size in inches. The zero value keeps Gotenberg's default.
type PaperSize struct {
	Width  float64
	Height float64
}

// Screenshot describes a Chromium screenshot request.
type Screenshot struct {
	Width  int
	Height int
	// Format is png, jpeg or webp; png when empty.
	Format string
}

// ScreenshotHTML rasterises raw HTML at the requested viewport size.
func (c *Client) ScreenshotHTML(ctx context.Context, html string, shot Screenshot) ([]byte, error) {
	format := shot.Format
	if format == "" {
		format = "png"
	}
	fields := map[string]string{
		"format":         format,
		"clip":           "true",
		"omitBackground": "false",
	}
	if shot.Width > 0 {
		fields["width"] = strconv.Itoa(shot.Width)
	}
	if shot.Height > 0 {
		fields["height"] = strconv.Itoa(shot.Height)
	}
	return c.post(ctx, "/forms/chromium/screenshot/html", html, fields)
}

func (c *Client) post(ctx context.Context, route, html string, fields map[string]string) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("gotenberg client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("gotenberg endpoint required")
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, err
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	payload := body.Bytes()
	contentType := writer.FormDataContentType()

	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = classifyNetError(err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
			continue
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: exhausted attempts", ErrInvalidResponse)
	}
	return nil, fmt.Errorf("gotenberg %s failed after %d attempts: %w", route, attempts, lastErr)
}

func classifyNetError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
