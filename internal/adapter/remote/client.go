// Package remote downloads IWG1 flight logs over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/recon-hdob/internal/adapter/file"
	"github.com/couchcryptid/recon-hdob/internal/domain"
)

const (
	defaultAttempts   = 3
	initialBackoff    = 250 * time.Millisecond
	maxBackoff        = 4 * time.Second
	maxErrorBodyBytes = 512
)

// StatusError is a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// temporary reports whether a retry might succeed.
func (e *StatusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client fetches flight logs by URL.
type Client struct {
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client whose requests time out after timeout. Server
// errors and transport failures are retried with exponential backoff.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		attempts: defaultAttempts,
		backoff:  initialBackoff,
		logger:   logger,
	}
}

// FetchLines downloads rawURL and splits it into lines, decompressing by the
// URL's extension or the body's magic bytes. Failures are *domain.IOError.
func (c *Client) FetchLines(ctx context.Context, rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &domain.IOError{Op: "fetch", Path: rawURL, Err: errors.New("not an http(s) URL")}
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lines, err := c.fetch(ctx, rawURL, path.Base(u.Path))
		if err == nil {
			return lines, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.temporary() {
			break
		}
		if attempt == c.attempts {
			break
		}
		c.logger.Warn("fetch failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			lastErr = ctx.Err()
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return nil, &domain.IOError{Op: "fetch", Path: rawURL, Err: lastErr}
}

func (c *Client) fetch(ctx context.Context, rawURL, name string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	lines, err := file.ReadLinesFrom(resp.Body, name)
	if err != nil {
		return nil, err
	}
	return lines, nil
}
