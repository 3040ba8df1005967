// Package fetch is the plain-HTTP side of the pipeline: a retrying client
// with realistic headers, bounded response bodies, and detection of
// bot-protection responses that should escalate to the browser layer.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pevans/newshound/metrics"
)

// DefaultUserAgent is sent when no user agent is configured. Sites routinely
// serve degraded or blocked pages to obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const (
	defaultTimeout = 10 * time.Second
	defaultMaxBody = 10 << 20 // 10 MB
	defaultBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
	defaultRetries = 2
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Client fetches pages over plain HTTP with retry and backoff.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	maxBody    int64
	logger     *slog.Logger
}

// NewClient creates a client from options.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultBackoff
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		maxBody:    opts.MaxBodyBytes,
		logger:     opts.Logger,
	}
}

// UserAgent returns the agent string sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Response is a fully read HTTP response. Non-2xx statuses are not errors:
// callers inspect the status, notably for bot-protection detection.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// HTML returns the response body as a string.
func (r *Response) HTML() string {
	return string(r.Body)
}

// Get fetches a URL, retrying transport failures and retryable statuses with
// exponential backoff. It returns an error only when every attempt failed at
// the transport level.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	attempts := c.maxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.getOnce(ctx, rawURL)
		if err == nil {
			if shouldRetryStatus(resp.StatusCode) && attempt < attempts-1 {
				lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
			} else {
				return resp, nil
			}
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		}

		if attempt < attempts-1 {
			delay := c.backoff * time.Duration(1<<attempt)
			if delay > maxBackoff {
				delay = maxBackoff
			}
			metrics.FetchRetries.Inc()
			c.logger.Debug("fetch retry", "url", rawURL, "attempt", attempt+1, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
			timer.Stop()
		}
	}

	return nil, fmt.Errorf("fetching %s: %w", rawURL, lastErr)
}

func (c *Client) getOnce(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// shouldRetryStatus reports whether a status is worth another attempt.
// Notably 403 is excluded: a bot-protection block must surface unchanged so
// the caller can escalate instead of hammering the origin.
func shouldRetryStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// blockedBodyMarkers are interstitial-page phrases from Cloudflare and
// similar products.
var blockedBodyMarkers = []string{
	"just a moment",
	"cdn-cgi/challenge",
	"checking your browser",
	"verifying you are human",
	"attention required! | cloudflare",
	"enable javascript and cookies to continue",
	"ddos protection by",
}

// CloudflareBlocked reports whether the response is a bot-protection
// interstitial rather than page content.
func (r *Response) CloudflareBlocked() bool {
	if r.Header.Get("cf-mitigated") != "" {
		return true
	}
	if r.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(r.Header.Get("Server")), "cloudflare") {
		return true
	}
	return BlockedHTML(string(r.Body))
}

// BlockedHTML reports whether rendered or fetched HTML is a challenge page.
// Also used on browser output, where no response headers exist.
func BlockedHTML(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range blockedBodyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
