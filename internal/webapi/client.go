package webapi

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
)

const (
	defaultTimeout  = 60 * time.Second
	maxErrorPreview = 512
	maxResponseSize = 4 << 20
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var sErr *StatusError
	return errors.As(err, &sErr) && sErr.StatusCode == code
}

// Request is one single-shot JSON call. Body is encoded as JSON when set.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Client performs single-shot JSON requests without retries.
type Client struct {
	http      *http.Client
	logger    *slog.Logger
	userAgent string
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default().With("component", "webapi")
	}

	return &Client{http: httpClient, logger: logger}
}

// WithUserAgent sets the User-Agent sent with every request.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua

	return c
}

// DoJSON sends req and decodes a 2xx response body into out, which may be nil.
// out is left untouched on any error.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, httpReq.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("http call", "method", method, "url", httpReq.URL.Redacted(), "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPreview))

		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(preview))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}

	return nil
}

func bearer(key string) map[string]string {
	if key == "" {
		return nil
	}

	return map[string]string{"Authorization": "Bearer " + key}
}
