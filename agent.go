// Package newshound acquires news articles from arbitrary publisher sites.
// An Agent runs a discovery cascade (feeds, sitemaps, homepage scraping,
// direct extraction) against one seed URL and extracts normalized articles
// from the candidate pages it finds, escalating from plain HTTP to a
// headless browser only when a site demands it.
package newshound

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pevans/newshound/browser"
	"github.com/pevans/newshound/classify"
	"github.com/pevans/newshound/discover"
	"github.com/pevans/newshound/extract"
	"github.com/pevans/newshound/fetch"
	"github.com/pevans/newshound/metrics"
	"github.com/pevans/newshound/quality"
	"github.com/pevans/newshound/sources"
)

// Renderer is the escalation path for pages plain HTTP cannot read:
// bot-protected origins and client-side-rendered shells.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// Config holds the tunable knobs for an Agent.
type Config struct {
	// Maximum number of article extractions in flight at once.
	MaxConcurrency int
	// Cap on candidate URLs extracted per discovery stage.
	MaxArticles int
	// How long cached articles stay reusable.
	CacheTTL time.Duration
	// Sent on every HTTP request and as the browser user agent.
	UserAgent string
	// Consult robots.txt before fetching article pages.
	RespectRobots bool
	// Minimum quality score for acceptance.
	MinQualityScore int
	// Per-site extraction overrides, normally carried by the source roster.
	Profile *sources.ScrapeProfile
	// Plain HTTP fetch timeout. Zero uses the fetch layer default.
	HTTPTimeout time.Duration
	// Browser navigation timeout. Zero uses the browser layer default.
	BrowserNavTimeout time.Duration
	// Browser content-selector wait. Zero uses the browser layer default.
	SelectorTimeout time.Duration
	// Retries for both fetch layers.
	MaxRetries int
	// Logger for pipeline events. Nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:  3,
		MaxArticles:     10,
		CacheTTL:        DefaultCacheTTL,
		UserAgent:       fetch.DefaultUserAgent,
		MinQualityScore: 60,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.MaxArticles <= 0 {
		c.MaxArticles = def.MaxArticles
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.MinQualityScore <= 0 {
		c.MinQualityScore = def.MinQualityScore
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Politeness delays for batch extraction. Not a correctness mechanism; they
// keep the agent from tripping origin-side rate limiting.
const (
	chunkDelayMin = 500 * time.Millisecond
	chunkDelayMax = 1000 * time.Millisecond
	jitterMin     = 100 * time.Millisecond
	jitterMax     = 300 * time.Millisecond
)

// Agent runs the acquisition pipeline for one seed site. Agents hold an
// in-memory article cache and at most one headless browser process; Cleanup
// must be called once at the end of an agent's life.
type Agent struct {
	seedURL    string
	seed       *url.URL
	cfg        Config
	classifier *classify.Classifier
	validator  *quality.Validator
	client     *fetch.Client
	robots     *fetch.Robots
	renderer   Renderer
	cache      *articleCache
	logger     *slog.Logger

	// Delay bounds, adjustable for tests.
	chunkDelayLo, chunkDelayHi time.Duration
	jitterLo, jitterHi         time.Duration
}

// NewAgent creates an agent for one seed site. config may be nil for
// defaults. The browser process is not launched until a page actually needs
// rendering.
func NewAgent(seedURL string, config *Config) (*Agent, error) {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = config.normalized()
	}

	classifier, err := classify.New(seedURL)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := fetch.NewClient(fetch.Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})

	a := &Agent{
		seedURL:    seedURL,
		seed:       seed,
		cfg:        cfg,
		classifier: classifier,
		validator:  quality.New(quality.Config{MinScore: cfg.MinQualityScore}),
		client:     client,
		renderer: browser.New(browser.Options{
			UserAgent:       cfg.UserAgent,
			NavTimeout:      cfg.BrowserNavTimeout,
			SelectorTimeout: cfg.SelectorTimeout,
			MaxRetries:      cfg.MaxRetries,
			Logger:          logger,
		}),
		cache:  newArticleCache(cfg.CacheTTL),
		logger: logger,

		chunkDelayLo: chunkDelayMin,
		chunkDelayHi: chunkDelayMax,
		jitterLo:     jitterMin,
		jitterHi:     jitterMax,
	}
	if cfg.RespectRobots {
		a.robots = fetch.NewRobots(client, 0)
	}
	return a, nil
}

// Cleanup releases the agent's browser process. Call it once at the end of
// the agent's life; skipping it leaks an OS process.
func (a *Agent) Cleanup() error {
	if a.renderer == nil {
		return nil
	}
	return a.renderer.Close()
}

// FetchNews runs the discovery cascade and returns the extracted articles.
// It never panics and never returns an error value: every failure mode lands
// in the result with Success false.
//
// Strategies run in a fixed order and the first whose batch yields at least
// one accepted article wins. Feed entries contribute links only, never
// content.
func (a *Agent) FetchNews(ctx context.Context) (result FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("pipeline panicked", "seed", a.seedURL, "panic", r)
			result = FetchResult{Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	a.logger.Info("starting discovery cascade", "seed", a.seedURL)
	homepage := a.fetchHomepage(ctx)

	stages := []struct {
		method     string
		candidates func() []string
	}{
		{MethodRSS, func() []string { return discover.Feeds(ctx, a.client, a.seed, homepage) }},
		{MethodSitemap, func() []string { return a.sitemapCandidates(ctx) }},
		{MethodScraping, func() []string { return a.scrapeCandidates(ctx, homepage) }},
		{MethodExtraction, func() []string { return []string{a.seedURL} }},
	}

	var lastBatch []Article
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return FetchResult{Articles: lastBatch, Error: err.Error()}
		}

		urls := stage.candidates()
		if len(urls) == 0 {
			a.logger.Debug("stage found no candidates", "method", stage.method)
			continue
		}
		if len(urls) > a.cfg.MaxArticles {
			urls = urls[:a.cfg.MaxArticles]
		}
		a.logger.Info("stage produced candidates", "method", stage.method, "candidates", len(urls))

		articles := a.extractBatch(ctx, urls)
		lastBatch = articles

		if n := countAccepted(articles); n > 0 {
			a.logger.Info("cascade succeeded", "method", stage.method, "accepted", n, "attempted", len(articles))
			metrics.DiscoveryRuns.WithLabelValues(stage.method, "success").Inc()
			return FetchResult{Articles: articles, Success: true, Method: stage.method}
		}
	}

	metrics.DiscoveryRuns.WithLabelValues("none", "failure").Inc()
	return FetchResult{
		Articles: lastBatch,
		Error:    "no discovery strategy produced an acceptable article for " + a.seedURL,
	}
}

// fetchHomepage grabs the seed page once; the feed and scraping stages both
// read it.
func (a *Agent) fetchHomepage(ctx context.Context) string {
	resp, err := a.client.Get(ctx, a.seedURL)
	if err != nil {
		a.logger.Warn("homepage fetch failed", "seed", a.seedURL, "error", err)
		return ""
	}
	return resp.HTML()
}

// sitemapCandidates keeps only sitemap entries the classifier recognises as
// articles; sitemaps list every page a site has.
func (a *Agent) sitemapCandidates(ctx context.Context) []string {
	var urls []string
	for _, loc := range discover.Sitemap(ctx, a.client, a.seed) {
		if a.classifier.IsArticleURL(loc) {
			urls = append(urls, loc)
		}
	}
	return urls
}

// scrapeCandidates harvests homepage anchors, rendering the homepage in the
// browser first when it looks like a client-side-rendered shell.
func (a *Agent) scrapeCandidates(ctx context.Context, homepage string) []string {
	html := homepage
	if html != "" && discover.LooksLikeSPAShell(html) {
		a.logger.Info("homepage looks client-rendered, escalating to browser", "seed", a.seedURL)
		rendered, err := a.renderer.Render(ctx, a.seedURL)
		if err != nil {
			a.logger.Warn("homepage render failed", "seed", a.seedURL, "error", err)
		} else {
			html = rendered
		}
	}
	if html == "" {
		return nil
	}

	type candidate struct {
		url      string
		priority int
	}
	var candidates []candidate
	for _, link := range discover.PageLinks(html, a.seed) {
		cls := a.classifier.Classify(link)
		if cls.ShouldExtract {
			candidates = append(candidates, candidate{link, cls.Priority})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.url
	}
	return urls
}

// extractBatch extracts candidates in chunks of MaxConcurrency with
// politeness delays between chunks and jitter before each request. One URL's
// failure never aborts the batch.
func (a *Agent) extractBatch(ctx context.Context, urls []string) []Article {
	out := make([]Article, len(urls))

	for start := 0; start < len(urls); start += a.cfg.MaxConcurrency {
		if start > 0 {
			a.pause(ctx, a.chunkDelayLo, a.chunkDelayHi)
		}
		end := min(start+a.cfg.MaxConcurrency, len(urls))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				a.pause(gctx, a.jitterLo, a.jitterHi)
				out[i] = a.extractArticle(gctx, urls[i])
				return nil
			})
		}
		g.Wait()
	}
	return out
}

// pause sleeps a random duration in [lo, hi], returning early on context
// cancellation.
func (a *Agent) pause(ctx context.Context, lo, hi time.Duration) {
	if hi <= 0 {
		return
	}
	d := lo
	if span := hi - lo; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// extractArticle runs the per-URL extraction state machine. It always
// returns a record; failures are captured, never thrown.
func (a *Agent) extractArticle(ctx context.Context, rawURL string) (article Article) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("extraction panicked", "url", rawURL, "panic", r)
			article = Article{Source: SourceFromURL(rawURL), URL: rawURL}
			article = failed(article, fmt.Sprintf("%s: %v", FailureInternal, r))
			metrics.ArticlesExtracted.WithLabelValues("panic").Inc()
		}
	}()

	if cached, ok := a.cache.get(rawURL); ok && !cached.ExtractionFailed {
		a.logger.Debug("cache hit", "url", rawURL)
		metrics.ArticlesExtracted.WithLabelValues("cached").Inc()
		return cached
	}

	start := time.Now()
	article = a.extractOnce(ctx, rawURL)

	metrics.ExtractionDuration.WithLabelValues(methodLabel(article)).Observe(time.Since(start).Seconds())
	metrics.ArticlesExtracted.WithLabelValues(outcomeLabel(article)).Inc()

	a.cache.put(rawURL, article)
	return article
}

// extractOnce is one pass of the extraction state machine: classify, fetch,
// readability, escalate on bot protection, profile or enhanced extraction,
// metadata backfill, then both acceptance gates.
func (a *Agent) extractOnce(ctx context.Context, rawURL string) Article {
	article := Article{Source: SourceFromURL(rawURL), URL: rawURL}

	// Listing and category pages fail fast; no fetch is worth it.
	cls := a.classifier.Classify(rawURL)
	if cls.Type == classify.TypeListing || cls.Type == classify.TypeCategory {
		a.logger.Debug("rejecting listing page", "url", rawURL, "type", cls.Type)
		return failed(article, FailureListingPage)
	}

	if a.robots != nil && !a.robots.Allowed(ctx, rawURL) {
		a.logger.Info("robots.txt disallows URL", "url", rawURL)
		return failed(article, FailureRobots)
	}

	resp, err := a.client.Get(ctx, rawURL)
	if err != nil {
		a.logger.Warn("article fetch failed", "url", rawURL, "error", err)
		return failed(article, FailureFetch)
	}
	article.Trace.URLFetched = true
	article.Trace.FetchMethod = FetchMethodHTML
	article.URL = resp.FinalURL
	article.Source = SourceFromURL(resp.FinalURL)

	pageURL, _ := url.Parse(resp.FinalURL)
	pageHTML := resp.HTML()
	blocked := resp.CloudflareBlocked()

	// Error statuses end the attempt unless they carry bot-protection
	// signatures, which are a branch condition rather than a failure.
	if resp.StatusCode >= 400 && !blocked {
		a.logger.Warn("article fetch returned error status", "url", rawURL, "status", resp.StatusCode)
		return failed(article, FailureFetch)
	}

	res, rerr := extract.Readability(pageHTML, pageURL)

	// Thin or missing content from a protected origin means the page never
	// arrived; render it for real and parse again.
	if tooThin(res, rerr) && blocked {
		a.logger.Info("bot protection detected, escalating to browser", "url", rawURL)
		rendered, berr := a.renderer.Render(ctx, rawURL)
		if berr != nil {
			a.logger.Warn("browser escalation failed", "url", rawURL, "error", berr)
		} else {
			pageHTML = rendered
			article.Trace.FetchMethod = FetchMethodJS
			res, rerr = extract.Readability(pageHTML, pageURL)
		}
	}

	readabilityOK := rerr == nil && len(res.Content) >= extract.MinReadableLength

	// A roster profile's content selector is tried before generic detection;
	// an operator picked it for this site. Misses fall through.
	var profiled *extract.Result
	if p := a.cfg.Profile; p != nil && p.ContentSelector != "" {
		profiled, _ = extract.FromSelector(pageHTML, p.ContentSelector)
	}

	// Enhanced extraction scores DOM candidates directly. When it finds a
	// credible root its content wins; when readability came up short it is
	// the fallback of record.
	var enh *extract.Result
	if profiled == nil {
		enh, _ = extract.Enhanced(pageHTML, pageURL)
	}

	switch {
	case profiled != nil:
		article.Content = profiled.Content
		article.Trace.RootSelector = profiled.RootSelector
		article.Trace.ParagraphsFound = profiled.Paragraphs
	case enh != nil:
		article.Content = enh.Content
		article.Trace.RootSelector = enh.RootSelector
		article.Trace.ParagraphsFound = enh.Paragraphs
		article.Trace.FallbackUsed = !readabilityOK
	case readabilityOK:
		article.Content = res.Content
		article.Trace.RootSelector = res.RootSelector
		article.Trace.ParagraphsFound = res.Paragraphs
	default:
		// Keep whatever thin text exists so the trace shows what was seen.
		if rerr == nil {
			article.Content = res.Content
			article.Trace.RootSelector = res.RootSelector
			article.Trace.ParagraphsFound = res.Paragraphs
		}
		article.Trace.ContentLength = len(article.Content)
		a.logger.Debug("content too short after all passes", "url", rawURL, "length", len(article.Content))
		return failed(article, FailureContentTooShort)
	}
	article.Trace.ContentLength = len(article.Content)

	// Metadata always comes from targeted extractors over the original
	// document, independent of which content pass won.
	meta := extract.PageMeta(pageHTML, pageURL)
	if p := a.cfg.Profile; !p.Empty() {
		meta = extract.ApplyOverrides(pageHTML, meta, extract.Overrides{
			Title:      p.TitleSelector,
			Author:     p.AuthorSelector,
			Date:       p.DateSelector,
			DateLayout: p.DateFormat,
		})
	}
	article.Title = meta.Title
	article.Description = meta.Description
	if article.Description == "" {
		article.Description = excerpt(article.Content)
	}
	article.Image = meta.Image
	article.Author = extract.CleanAuthor(meta.Author)
	article.PublishedAt = meta.Published
	article.Category = meta.Category
	article.Language = extract.DetectLanguage(article.Content)

	// Gate one: the quality validator.
	validated := article.Content
	switch {
	case profiled != nil && profiled.HTML != "":
		validated = profiled.HTML
	case enh != nil && enh.HTML != "":
		validated = enh.HTML
	case readabilityOK && res.HTML != "":
		validated = res.HTML
	}
	q := a.validator.Validate(validated, article.Title, article.URL)

	score := q.Score
	article.Trace.QualityScore = &score
	article.Trace.QualityReasons = q.Reasons
	article.Trace.IsListingPage = &q.IsListingPage
	article.Trace.IsContactPage = &q.IsContactPage
	article.Trace.IsAdvertisement = &q.IsAdvertisement

	if !q.HasRealArticleContent {
		a.logger.Debug("quality gate rejected article", "url", rawURL, "score", q.Score, "reasons", q.Reasons)
		return failed(article, FailureQualityCheck)
	}

	// Gate two: hard requirements, independent of the score.
	if reason := hardRequirementFailure(article); reason != "" {
		a.logger.Debug("hard requirement failed", "url", rawURL, "requirement", reason)
		return failed(article, FailureRequirements)
	}

	return article
}

// tooThin reports whether an extraction pass produced less than the minimum
// readable content.
func tooThin(res *extract.Result, err error) bool {
	return err != nil || res == nil || len(res.Content) < extract.MinReadableLength
}

// hardRequirementFailure checks the acceptance minimums that hold for every
// non-failed record. It returns the first unmet requirement, or "".
func hardRequirementFailure(a Article) string {
	switch {
	case !a.Trace.URLFetched:
		return "url never fetched"
	case len(a.Content) < 300:
		return "content under 300 chars"
	case a.Trace.ParagraphsFound < 3:
		return "fewer than 3 paragraphs"
	case a.Title == "":
		return "empty title"
	case a.Image == "" && len(a.Description) <= 50:
		return "no image and no usable description"
	case feedSelector(a.Trace.RootSelector):
		return "content came from a feed document"
	}
	return ""
}

// feedSelector reports whether a root selector indicates content extracted
// from a feed or sitemap document rather than an article page.
func feedSelector(selector string) bool {
	s := strings.ToLower(selector)
	for _, marker := range []string{"rss", "feed", "xml", "sitemap"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// failed marks a record as unusable with a stable reason.
func failed(article Article, reason string) Article {
	article.ExtractionFailed = true
	article.Trace.FailureReason = reason
	if article.Trace.ContentLength == 0 {
		article.Trace.ContentLength = len(article.Content)
	}
	return article
}

// excerpt derives a description from the first content block when the page
// carries no usable meta description.
func excerpt(content string) string {
	first := content
	if i := strings.Index(content, "\n\n"); i > 0 {
		first = content[:i]
	}
	first = strings.TrimSpace(first)
	if len(first) <= 300 {
		return first
	}
	cut := first[:300]
	if i := strings.LastIndexByte(cut, ' '); i > 200 {
		cut = cut[:i]
	}
	return cut + "…"
}

func methodLabel(a Article) string {
	if a.Trace.FetchMethod == "" {
		return "none"
	}
	return a.Trace.FetchMethod
}

func outcomeLabel(a Article) string {
	if !a.ExtractionFailed {
		return "accepted"
	}
	reason := a.Trace.FailureReason
	if i := strings.IndexByte(reason, ':'); i > 0 {
		reason = reason[:i]
	}
	if reason == "" {
		return "failed"
	}
	return strings.ToLower(reason)
}
