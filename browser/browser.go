// Package browser is the hardened fetch layer: one shared headless Chrome
// per Fetcher, a fresh page per navigation, request interception for heavy
// and hostile resources, and recycling to bound memory growth in
// long-running Chrome processes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pevans/newshound/metrics"
)

const (
	DefaultNavTimeout      = 30 * time.Second
	DefaultSelectorTimeout = 10 * time.Second

	// DefaultPageLimit recycles Chrome after this many navigations. Headless
	// Chrome accumulates memory across pages even when every page is closed.
	DefaultPageLimit = 50

	defaultMaxRetries = 2
	selectorPoll      = 500 * time.Millisecond
)

// ErrClosed is returned from Render after Close.
var ErrClosed = errors.New("browser fetcher closed")

// blockedURLPatterns abort requests for media, fonts, stylesheets, and known
// ad/tracking hosts. Rendering article text needs none of them and skipping
// them cuts page time sharply.
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.mp4", "*.webm", "*.mp3", "*.avi",
	"*.css",
	"*googlesyndication.com*",
	"*doubleclick.net*",
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*connect.facebook.net*",
	"*adsystem*",
	"*taboola.com*",
	"*outbrain.com*",
	"*scorecardresearch.com*",
	"*chartbeat.com*",
	"*hotjar.com*",
}

// contentReadyScript reports whether a content-indicative element with real
// text has appeared. Rendered apps mount these well before load completes.
const contentReadyScript = `(function() {
	var selectors = ["article", "main", "[role='main']", ".article-body", ".article-content", ".story-body", ".post-content", ".entry-content"];
	for (var i = 0; i < selectors.length; i++) {
		var el = document.querySelector(selectors[i]);
		if (el && (el.textContent || '').trim().length > 100) {
			return true;
		}
	}
	return false;
})()`

// Options configures a Fetcher. Zero values use defaults.
type Options struct {
	UserAgent       string
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	MaxRetries      int
	PageLimit       int
	Logger          *slog.Logger
}

// Fetcher renders pages in a shared headless Chrome. The browser process
// launches lazily on first use and must be released with Close.
type Fetcher struct {
	opts   Options
	logger *slog.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	pages         int
	closed        bool
}

// New creates a Fetcher. No Chrome process is started until the first
// render.
func New(opts Options) *Fetcher {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = DefaultNavTimeout
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = DefaultSelectorTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{opts: opts, logger: opts.Logger}
}

func allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	return opts
}

// Render fetches the rendered HTML for a URL, retrying failed navigations.
// This is the escalation contract the pipeline consumes.
func (f *Fetcher) Render(ctx context.Context, rawURL string) (string, error) {
	return f.FetchWithRetry(ctx, rawURL)
}

// renderOnce navigates a fresh page to the URL and returns the rendered
// HTML. The content-selector wait is advisory: on timeout the page is
// returned as it stands.
func (f *Fetcher) renderOnce(ctx context.Context, rawURL string) (string, error) {
	browserCtx, err := f.acquire()
	if err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	navCtx, navCancel := context.WithTimeout(tabCtx, f.opts.NavTimeout)
	defer navCancel()
	// Caller cancellation has to reach the chromedp context chain.
	stop := context.AfterFunc(ctx, navCancel)
	defer stop()

	err = chromedp.Run(navCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		f.noteFailure(err)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("rendering %s: %w", rawURL, err)
	}

	f.waitForContent(navCtx)

	var html string
	if err := chromedp.Run(navCtx, chromedp.OuterHTML("html", &html)); err != nil {
		f.noteFailure(err)
		return "", fmt.Errorf("capturing %s: %w", rawURL, err)
	}

	f.mu.Lock()
	f.pages++
	f.mu.Unlock()
	return html, nil
}

// FetchWithRetry renders with exponential backoff between attempts. A
// timeout failure aborts immediately: a page that did not finish in a full
// navigation window will not finish in the next one either.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	attempts := f.opts.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Debug("browser retry", "url", rawURL, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		html, err := f.renderOnce(ctx, rawURL)
		if err == nil {
			return html, nil
		}
		lastErr = err

		if errors.Is(err, ErrClosed) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline exceeded") {
			return "", err
		}
	}
	return "", lastErr
}

// waitForContent polls for a content selector until the selector timeout.
func (f *Fetcher) waitForContent(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, f.opts.SelectorTimeout)
	defer cancel()

	for {
		var found bool
		if err := chromedp.Run(waitCtx, chromedp.Evaluate(contentReadyScript, &found)); err != nil {
			return
		}
		if found {
			return
		}
		select {
		case <-waitCtx.Done():
			return
		case <-time.After(selectorPoll):
		}
	}
}

// acquire returns the shared browser context, launching or recycling it
// under the lock as needed.
func (f *Fetcher) acquire() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.browserCtx != nil && f.pages >= f.opts.PageLimit {
		f.logger.Info("recycling browser", "pages", f.pages)
		metrics.BrowserRecycles.Inc()
		f.teardownLocked()
	}
	if f.browserCtx == nil {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(f.opts.UserAgent)...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
		f.allocCancel = allocCancel
		f.browserCtx = browserCtx
		f.browserCancel = browserCancel
		f.pages = 0
	}
	return f.browserCtx, nil
}

// noteFailure tears the browser down when the error says the process or
// target died, so the next render starts clean.
func (f *Fetcher) noteFailure(err error) {
	if !isTargetClosed(err) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.browserCtx != nil {
		f.logger.Warn("browser died, will relaunch", "error", err)
		metrics.BrowserRecycles.Inc()
		f.teardownLocked()
	}
}

func (f *Fetcher) teardownLocked() {
	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
	f.pages = 0
}

// Close releases the Chrome process. Safe to call more than once; renders
// after Close fail with ErrClosed.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.teardownLocked()
	return nil
}

var targetClosedMarkers = []string{
	"target closed",
	"browser closed",
	"page closed",
	"connection closed",
	"websocket: close",
	"chrome failed to start",
}

func isTargetClosed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range targetClosedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
