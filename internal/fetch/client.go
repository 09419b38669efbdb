// Package fetch provides content-addressed HTTP retrieval with SHA-1
// verification, retries and atomic placement on disk.
package fetch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 60 * time.Second

	// UserAgent is the user agent string sent with every request.
	UserAgent = "bread-launcher/dev (+https://github.com/steviee/bread-launcher)"

	// DefaultBackoff is the linear backoff unit between attempts.
	DefaultBackoff = 5 * time.Second

	// DefaultMaxAttempts is the attempt budget for network failures.
	DefaultMaxAttempts = 4

	// maxHashAttempts bounds attempts that end in a SHA-1 mismatch.
	maxHashAttempts = 2
)

// Client performs downloads. One Client is shared by every pipeline in the process.
type Client struct {
	httpClient    *http.Client
	userAgent     string
	backoff       time.Duration
	allowInsecure bool
}

// Config holds client configuration.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Backoff   time.Duration

	// HTTPClient replaces the default TLS-only pooled client.
	HTTPClient *http.Client

	// AllowInsecure permits plain http:// URLs.
	AllowInsecure bool
}

// NewClient creates a download client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	if config.UserAgent == "" {
		config.UserAgent = UserAgent
	}

	if config.Backoff == 0 {
		config.Backoff = DefaultBackoff
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   config.Timeout,
			Transport: newTransport(),
		}
	}

	slog.Debug("creating download client",
		"timeout", config.Timeout,
		"backoff", config.Backoff,
		"user_agent", config.UserAgent)

	return &Client{
		httpClient:    httpClient,
		userAgent:     config.UserAgent,
		backoff:       config.Backoff,
		allowInsecure: config.AllowInsecure,
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        128,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
	}
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.StatusCode)
}

// Get performs a single GET and returns the full body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.checkURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.New(apperr.Config, "fetch.get", fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	slog.Debug("http request", "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Network, "fetch.get", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperr.New(apperr.Network, "fetch.get", &StatusError{URL: rawURL, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.Network, "fetch.get", fmt.Errorf("read body: %w", err))
	}

	return body, nil
}

// GetJSON fetches rawURL and decodes it into v, retrying network failures.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any, maxAttempts int) error {
	return c.retry(ctx, rawURL, maxAttempts, func() error {
		body, err := c.Get(ctx, rawURL)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, v); err != nil {
			return apperr.New(apperr.Config, "fetch.json", fmt.Errorf("decode %s: %w", rawURL, err))
		}
		return nil
	})
}

func (c *Client) checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperr.New(apperr.Config, "fetch", fmt.Errorf("parse url %q: %w", rawURL, err))
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if c.allowInsecure {
			return nil
		}
		return apperr.Errorf(apperr.Config, "fetch", "refusing non-TLS url %s", rawURL)
	default:
		return apperr.Errorf(apperr.Config, "fetch", "unsupported url scheme %q in %s", u.Scheme, rawURL)
	}
}

// retry runs fn up to maxAttempts times with a linear backoff of
// attempt*backoff. Only kinds that report Retryable get another attempt,
// and hash mismatches get a single redownload.
func (c *Client) retry(ctx context.Context, target string, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	mismatches := 0
	attempt := 0

	for attempt < maxAttempts {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.backoff
			slog.Debug("retrying download",
				"target", target,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("fetch %s: %w", target, ctx.Err())
			}
		}
		attempt++

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("fetch %s: %w", target, ctx.Err())
		}

		kind := apperr.KindOf(err)
		if kind == apperr.HashMismatch {
			mismatches++
			if mismatches >= maxHashAttempts {
				break
			}
			continue
		}
		if !kind.Retryable() {
			break
		}
	}

	if attempt == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
}
