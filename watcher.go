package newshound

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pevans/newshound/sources"
)

// Archiver persists accepted articles between watch runs. *archive.Archive
// satisfies it.
type Archiver interface {
	Add(rec Record) (Record, error)
	HasURL(rawURL string) (bool, error)
}

// WatcherConfig holds configuration for the watch service.
type WatcherConfig struct {
	// Poll interval for sources without their own.
	PollInterval time.Duration
	// Maximum number of sources fetched in parallel. Each source runs a
	// full pipeline, so this is a much heavier unit than one HTTP request.
	Concurrency int
	// Timeout for one source's full pipeline run.
	FetchTimeout time.Duration
	// Consecutive failures before a source is auto-disabled.
	DisableThreshold int
	// Template for per-source agents; the source's scrape profile is
	// applied on top. Nil uses DefaultConfig.
	Pipeline *Config
	// Logger for watch events. Nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultWatcherConfig returns the default watch configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		PollInterval:     1 * time.Hour,
		Concurrency:      3,
		FetchTimeout:     5 * time.Minute,
		DisableThreshold: 10,
	}
}

// Due-check cadence and the bounds a per-source poll interval is clamped to.
const (
	tickInterval    = 5 * time.Minute
	minPollInterval = 5 * time.Minute
	maxPollInterval = 24 * time.Hour
)

// Watcher polls the source roster and runs the acquisition pipeline against
// every due source, archiving accepted articles and keeping per-source fetch
// status current.
type Watcher struct {
	store   *sources.Store
	archive Archiver
	cfg     *WatcherConfig
	logger  *slog.Logger
	stop    chan struct{}
	wg      sync.WaitGroup
	sem     chan struct{}
}

// NewWatcher creates a watch service over the given roster and archive.
// config may be nil for defaults.
func NewWatcher(store *sources.Store, archive Archiver, config *WatcherConfig) *Watcher {
	cfg := DefaultWatcherConfig()
	if config != nil {
		c := *config
		def := DefaultWatcherConfig()
		if c.PollInterval <= 0 {
			c.PollInterval = def.PollInterval
		}
		if c.Concurrency <= 0 {
			c.Concurrency = def.Concurrency
		}
		if c.FetchTimeout <= 0 {
			c.FetchTimeout = def.FetchTimeout
		}
		if c.DisableThreshold <= 0 {
			c.DisableThreshold = def.DisableThreshold
		}
		cfg = &c
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		store:   store,
		archive: archive,
		cfg:     cfg,
		logger:  logger,
		stop:    make(chan struct{}),
		sem:     make(chan struct{}, cfg.Concurrency),
	}
}

// Run polls immediately, then keeps polling until Stop is called or the
// context is cancelled. In-flight source fetches are waited for on the way
// out.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watch service starting",
		"poll_interval", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency)

	if err := w.Poll(ctx); err != nil {
		w.logger.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch service stopping", "reason", "context cancelled")
			w.wg.Wait()
			return ctx.Err()
		case <-w.stop:
			w.logger.Info("watch service stopping")
			w.wg.Wait()
			return nil
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				w.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// Stop signals Run to finish. Call it at most once.
func (w *Watcher) Stop() {
	close(w.stop)
}

// Poll runs one pass over the roster, launching a pipeline run for every due
// source. It returns once all runs are launched, not once they finish.
func (w *Watcher) Poll(ctx context.Context) error {
	all, err := w.store.List(sources.Filter{})
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}

	due := w.dueSources(all, w.defaultInterval())
	if len(due) == 0 {
		return nil
	}
	w.logger.Info("fetching due sources", "due", len(due), "total", len(all))

	for _, src := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.sem <- struct{}{}:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-w.sem }()
				w.fetchSource(ctx, src)
			}()
		}
	}

	return nil
}

// defaultInterval returns the roster-wide default poll interval, falling
// back to the watcher config when the roster has none or it does not parse.
func (w *Watcher) defaultInterval() time.Duration {
	settings, err := w.store.Settings()
	if err != nil {
		w.logger.Warn("reading roster settings failed", "error", err)
		return w.cfg.PollInterval
	}
	if interval, err := time.ParseDuration(settings.DefaultPollInterval); err == nil {
		return interval
	}
	return w.cfg.PollInterval
}

// dueSources filters for enabled sources whose poll interval has elapsed.
func (w *Watcher) dueSources(all []sources.Source, fallback time.Duration) []sources.Source {
	now := time.Now()
	var due []sources.Source
	for _, src := range all {
		if !src.IsEnabled() {
			continue
		}
		if isDue(src, w.pollInterval(src, fallback), now) {
			due = append(due, src)
		}
	}
	return due
}

// pollInterval returns the source's own interval clamped to the allowed
// bounds, or the fallback when the source has none.
func (w *Watcher) pollInterval(src sources.Source, fallback time.Duration) time.Duration {
	if src.PollInterval != nil {
		if interval, err := time.ParseDuration(*src.PollInterval); err == nil {
			interval = max(interval, minPollInterval)
			interval = min(interval, maxPollInterval)
			return interval
		}
		w.logger.Warn("unparseable poll interval, using default",
			"source", src.Name, "interval", *src.PollInterval)
	}
	return fallback
}

// isDue reports whether a source should be fetched now. Never-fetched
// sources are due immediately.
func isDue(src sources.Source, interval time.Duration, now time.Time) bool {
	if src.LastFetchedAt == nil {
		return true
	}
	return !now.Before(src.LastFetchedAt.Add(interval))
}

// fetchSource runs one pipeline pass for one source and records the outcome
// in the roster.
func (w *Watcher) fetchSource(ctx context.Context, src sources.Source) {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	agent, err := NewAgent(src.URL, w.agentConfig(src))
	if err != nil {
		w.logger.Error("agent construction failed", "source", src.Name, "url", src.URL, "error", err)
		w.noteFailure(src, err.Error())
		return
	}
	defer agent.Cleanup()

	result := agent.FetchNews(fetchCtx)
	if !result.Success {
		w.logger.Warn("source fetch failed", "source", src.Name, "url", src.URL, "error", result.Error)
		w.noteFailure(src, result.Error)
		return
	}

	accepted := result.Accepted()
	archived := 0
	for _, art := range accepted {
		seen, err := w.archive.HasURL(art.URL)
		if err != nil {
			w.logger.Warn("archive lookup failed", "url", art.URL, "error", err)
			continue
		}
		if seen {
			continue
		}

		rec := Record{SourceID: &src.SourceID, Method: result.Method, Article: art}
		if _, err := w.archive.Add(rec); err != nil {
			w.logger.Warn("archiving article failed", "url", art.URL, "error", err)
			continue
		}
		archived++
	}

	w.noteSuccess(src, result.Method)
	w.logger.Info("source fetched",
		"source", src.Name,
		"method", result.Method,
		"accepted", len(accepted),
		"archived", archived,
		"duration", time.Since(start).Round(time.Millisecond))
}

// agentConfig builds the per-source agent configuration from the template
// plus the source's scrape profile.
func (w *Watcher) agentConfig(src sources.Source) *Config {
	var cfg Config
	if w.cfg.Pipeline != nil {
		cfg = *w.cfg.Pipeline
	} else {
		cfg = *DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = w.logger
	}
	cfg.Profile = src.Profile
	return &cfg
}

// noteSuccess resets the source's error state and records what worked.
func (w *Watcher) noteSuccess(src sources.Source, method string) {
	now := time.Now()
	zero := 0
	err := w.store.Update(src.SourceID, sources.Update{
		LastFetchedAt:   &now,
		LastMethod:      &method,
		FetchErrorCount: &zero,
		ClearLastError:  true,
	})
	if err != nil {
		w.logger.Error("roster update failed", "source", src.Name, "error", err)
	}
}

// noteFailure bumps the source's failure count, auto-disabling it once the
// count reaches the threshold.
func (w *Watcher) noteFailure(src sources.Source, msg string) {
	now := time.Now()
	count := src.FetchErrorCount + 1
	update := sources.Update{
		LastFetchedAt:   &now,
		LastError:       &msg,
		FetchErrorCount: &count,
	}

	if count >= w.cfg.DisableThreshold {
		w.logger.Error("auto-disabling source after consecutive failures",
			"source", src.Name, "url", src.URL, "failures", count)
		update.ClearEnabledAt = true
	}

	if err := w.store.Update(src.SourceID, update); err != nil {
		w.logger.Error("roster update failed", "source", src.Name, "error", err)
	}
}
