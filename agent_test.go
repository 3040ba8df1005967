package newshound

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/newshound/sources"
)

// fakeRenderer stands in for the headless browser in tests.
type fakeRenderer struct {
	mu     sync.Mutex
	html   string
	err    error
	calls  int
	closed bool
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRenderer) renderCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testAgent builds an agent against a test server with retries and
// politeness delays disabled.
func testAgent(t *testing.T, seedURL string) (*Agent, *fakeRenderer) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	cfg.Logger = slog.New(slog.DiscardHandler)

	a, err := NewAgent(seedURL, cfg)
	require.NoError(t, err, "agent construction should succeed for %s", seedURL)

	fake := &fakeRenderer{}
	a.renderer = fake
	a.chunkDelayLo, a.chunkDelayHi = 0, 0
	a.jitterLo, a.jitterHi = 0, 0

	t.Cleanup(func() { _ = a.Cleanup() })
	return a, fake
}

// articlePage is a page that should pass both acceptance gates.
func articlePage(title string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<title>%s</title>
<meta property="og:description" content="A council vote reshapes the transit budget after months of public debate.">
<meta property="og:image" content="https://static.example.com/images/vote.jpg">
<meta name="author" content="Jane Doe">
<meta property="article:published_time" content="2024-03-15T09:30:00Z">
</head><body>
<nav><a href="/">Home</a><a href="/news">News</a></nav>
<article>
<h1>%s</h1>
<p>The city council voted seven to two on Thursday to adopt a transit budget that expands weekend bus service across the northern districts beginning this autumn.</p>
<p>Supporters argued during a lengthy public hearing that riders in outlying neighbourhoods have waited years for weekend frequency matching the weekday schedule.</p>
<p>Opponents countered that the projected operating costs understate maintenance obligations, pointing to an independent audit released earlier this month.</p>
<p>The transit authority said the expanded service should begin within ninety days of the final signature, pending driver recruitment and vehicle inspections.</p>
</article>
<footer>All rights reserved.</footer>
</body></html>`, title, title)
}

const passingTitle = "Council transit budget expands weekend bus service"

func TestNewAgentRejectsBadSeed(t *testing.T) {
	_, err := NewAgent("ftp://example.com", nil)
	assert.Error(t, err, "non-http schemes should be rejected")

	_, err = NewAgent("://broken", nil)
	assert.Error(t, err)
}

func TestNewAgentNilConfigDefaults(t *testing.T) {
	a, err := NewAgent("https://example.com", nil)
	require.NoError(t, err)
	defer a.Cleanup()

	assert.Equal(t, 3, a.cfg.MaxConcurrency)
	assert.Equal(t, 10, a.cfg.MaxArticles)
	assert.Equal(t, DefaultCacheTTL, a.cfg.CacheTTL)
	assert.NotEmpty(t, a.cfg.UserAgent)
	assert.Nil(t, a.robots, "robots gate should be off by default")
}

func TestFetchNewsScrapingFallthrough(t *testing.T) {
	// No feeds, no sitemap, five article anchors on the homepage: the
	// cascade must fall through to scraping.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>The Example Ledger</title></head><body>
<nav><a href="/about">About</a><a href="/contact">Contact</a></nav>
<main>
<a href="/news/100001">Story one</a>
<a href="/news/100002">Story two</a>
<a href="/news/100003">Story three</a>
<a href="/news/100004">Story four</a>
<a href="/news/100005">Story five</a>
</main>
</body></html>`)
		case strings.HasPrefix(r.URL.Path, "/news/"):
			fmt.Fprint(w, articlePage(passingTitle))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	result := a.FetchNews(context.Background())

	require.True(t, result.Success, "cascade should succeed via scraping: %s", result.Error)
	assert.Equal(t, MethodScraping, result.Method)
	assert.Len(t, result.Accepted(), 5, "all five article anchors should extract")

	for _, article := range result.Accepted() {
		assert.Equal(t, passingTitle, article.Title)
		assert.GreaterOrEqual(t, len(article.Content), 300)
		assert.GreaterOrEqual(t, article.Trace.ParagraphsFound, 3)
		assert.True(t, article.Trace.URLFetched)
		assert.Equal(t, FetchMethodHTML, article.Trace.FetchMethod)
	}
}

func TestFetchNewsViaFeed(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			fmt.Fprint(w, `<html><head><title>Ledger</title></head><body><p>Front page.</p></body></html>`)
		case r.URL.Path == "/feed.xml":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Ledger Feed</title>
<item><title>One</title><link>%s/news/200001</link></item>
<item><title>Two</title><link>%s/news/200002</link></item>
</channel></rss>`, server.URL, server.URL)
		case strings.HasPrefix(r.URL.Path, "/news/"):
			fmt.Fprint(w, articlePage(passingTitle))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	result := a.FetchNews(context.Background())

	require.True(t, result.Success, "cascade should succeed via the feed: %s", result.Error)
	assert.Equal(t, MethodRSS, result.Method, "the feed stage should win before scraping")
	assert.Len(t, result.Accepted(), 2)
}

func TestFetchNewsViaSitemap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			fmt.Fprint(w, `<html><head><title>Ledger</title></head><body><p>Front page.</p></body></html>`)
		case r.URL.Path == "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%s/news/300001</loc></url>
<url><loc>%s/news/300002</loc></url>
<url><loc>%s/about</loc></url>
</urlset>`, server.URL, server.URL, server.URL)
		case strings.HasPrefix(r.URL.Path, "/news/"):
			fmt.Fprint(w, articlePage(passingTitle))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	result := a.FetchNews(context.Background())

	require.True(t, result.Success, "cascade should succeed via the sitemap: %s", result.Error)
	assert.Equal(t, MethodSitemap, result.Method)
	assert.Len(t, result.Accepted(), 2, "the /about entry should be filtered by classification")
}

func TestFetchNewsDirectExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/news/") {
			fmt.Fprint(w, articlePage(passingTitle))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	// The seed is itself an article URL; every discovery stage comes up
	// empty and the last-resort direct attempt must carry the run.
	a, _ := testAgent(t, server.URL+"/news/423001")
	result := a.FetchNews(context.Background())

	require.True(t, result.Success, "direct extraction should succeed: %s", result.Error)
	assert.Equal(t, MethodExtraction, result.Method)
	assert.Len(t, result.Accepted(), 1)
}

func TestFetchNewsTotalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	result := a.FetchNews(context.Background())

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error, "a failed run should explain itself")
	assert.Empty(t, result.Accepted(), "nothing should be accepted from a dead origin")
}

func TestFetchNewsCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _ := testAgent(t, server.URL)
	result := a.FetchNews(ctx)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestExtractBatchOneFailureSurvives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/news/500500" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, articlePage(passingTitle))
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	urls := []string{
		server.URL + "/news/500001",
		server.URL + "/news/500500",
		server.URL + "/news/500002",
	}
	articles := a.extractBatch(context.Background(), urls)

	require.Len(t, articles, 3, "every URL should produce a record")
	assert.False(t, articles[0].ExtractionFailed)
	assert.True(t, articles[1].ExtractionFailed, "the failing URL should be recorded, not dropped")
	assert.Equal(t, FailureFetch, articles[1].Trace.FailureReason)
	assert.False(t, articles[2].ExtractionFailed, "one failure should not abort the rest of the batch")
}

func TestExtractArticleListingFastFail(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	article := a.extractArticle(context.Background(), server.URL+"/news/page/2")

	assert.True(t, article.ExtractionFailed)
	assert.Equal(t, FailureListingPage, article.Trace.FailureReason)
	assert.Equal(t, 0, hits, "a listing URL should be rejected before any fetch")
}

func TestExtractArticleTooShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><head><title>Thin</title></head><body><p>Too short.</p></body></html>")
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	article := a.extractArticle(context.Background(), server.URL+"/news/600001")

	assert.True(t, article.ExtractionFailed, "thin pages must produce a failed record")
	assert.Equal(t, FailureContentTooShort, article.Trace.FailureReason)
	assert.True(t, article.Trace.URLFetched)
	assert.Less(t, article.Trace.ContentLength, 300)
}

func TestExtractArticleEscalatesOnBotProtection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>")
	}))
	defer server.Close()

	a, fake := testAgent(t, server.URL)
	fake.html = articlePage(passingTitle)

	article := a.extractArticle(context.Background(), server.URL+"/news/700001")

	require.False(t, article.ExtractionFailed, "the rendered page should extract: %s", article.Trace.FailureReason)
	assert.Equal(t, FetchMethodJS, article.Trace.FetchMethod, "escalation should be recorded in the trace")
	assert.Equal(t, 1, fake.renderCalls(), "the browser should be used exactly once")
	assert.Equal(t, passingTitle, article.Title)
}

func TestExtractArticleReusesValidatedCache(t *testing.T) {
	var articleHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/news/") {
			articleHits++
			fmt.Fprint(w, articlePage(passingTitle))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	url := server.URL + "/news/800001"

	first := a.extractArticle(context.Background(), url)
	second := a.extractArticle(context.Background(), url)

	require.False(t, first.ExtractionFailed)
	assert.Equal(t, 1, articleHits, "the second extraction should be served from cache")
	assert.Equal(t, first.Title, second.Title)
}

func TestExtractArticleDoesNotReuseFailedCache(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		fmt.Fprint(w, "<html><head><title>Thin</title></head><body><p>Too short.</p></body></html>")
	}))
	defer server.Close()

	a, _ := testAgent(t, server.URL)
	url := server.URL + "/news/900001"

	first := a.extractArticle(context.Background(), url)
	second := a.extractArticle(context.Background(), url)

	assert.True(t, first.ExtractionFailed)
	assert.True(t, second.ExtractionFailed)
	assert.Equal(t, 2, hits, "failed records must never be reused from cache")
}

func TestExtractArticleRespectsRobots(t *testing.T) {
	var articleHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
		case strings.HasPrefix(r.URL.Path, "/private/"):
			articleHits++
			fmt.Fprint(w, articlePage(passingTitle))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	cfg.RespectRobots = true
	cfg.Logger = slog.New(slog.DiscardHandler)
	a, err := NewAgent(server.URL, cfg)
	require.NoError(t, err)
	defer a.Cleanup()
	a.renderer = &fakeRenderer{}
	a.chunkDelayLo, a.chunkDelayHi = 0, 0
	a.jitterLo, a.jitterHi = 0, 0

	article := a.extractArticle(context.Background(), server.URL+"/private/news/100001")

	assert.True(t, article.ExtractionFailed)
	assert.Equal(t, FailureRobots, article.Trace.FailureReason)
	assert.Equal(t, 0, articleHits, "a disallowed URL must never be fetched")
}

func TestExtractArticleUsesScrapeProfile(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head>
<title>Generic Page Title</title>
<meta property="og:description" content="A port district dispatch covering the revised dredging schedule and its funding.">
<meta property="og:image" content="https://static.example.com/images/harbor.jpg">
<meta name="author" content="Newsroom Staff">
</head><body>
<time datetime="2024-01-01T00:00:00Z">January 1</time>
<article>
<p>Editor's note: our coverage of the port district continues all month with profiles of the crews, pilots, and planners who keep the channel open through every season of the year.</p>
<p>Reader questions for the series can be sent through the usual address and will be answered in a weekend roundup assembled by the desk.</p>
</article>
<div class="dispatch">
<h1 class="dispatch-title">Harbor dredging schedule moves up after new survey</h1>
<span class="writer">Alex Moore</span>
<time class="pub" datetime="2024-02-10T08:00:00Z">February 10</time>
<p>The harbor commission voted to move the dredging schedule up by a full season after a new survey from the engineering office showed the channel shoaling faster than projected.</p>
<p>Moving the work up means the dredge arrives before the autumn storm window, which the survey identified as the period when the most material enters the channel.</p>
<p>Funding for the accelerated schedule comes from the reserve the commission set aside two years ago, so no new assessment on harbor tenants is required this cycle.</p>
<p>The commission will review the next survey in the spring before deciding whether the accelerated schedule becomes permanent.</p>
</div>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	cfg.Logger = slog.New(slog.DiscardHandler)
	cfg.Profile = &sources.ScrapeProfile{
		ContentSelector: "div.dispatch",
		TitleSelector:   "h1.dispatch-title",
		AuthorSelector:  "span.writer",
		DateSelector:    "time.pub",
	}
	a, err := NewAgent(server.URL, cfg)
	require.NoError(t, err)
	defer a.Cleanup()
	a.renderer = &fakeRenderer{}
	a.chunkDelayLo, a.chunkDelayHi = 0, 0
	a.jitterLo, a.jitterHi = 0, 0

	article := a.extractArticle(context.Background(), server.URL+"/news/150001")

	require.False(t, article.ExtractionFailed, "profiled extraction should be accepted, got %s", article.Trace.FailureReason)
	assert.Equal(t, "div.dispatch", article.Trace.RootSelector, "the profile selector should be the content root")
	assert.Contains(t, article.Content, "harbor commission voted")
	assert.NotContains(t, article.Content, "Editor's note", "profile root should exclude the block generic detection would pick")
	assert.Equal(t, "Harbor dredging schedule moves up after new survey", article.Title, "title selector should beat the title tag")
	assert.Equal(t, "Alex Moore", article.Author, "author selector should beat the meta tag")
	require.NotNil(t, article.PublishedAt)
	assert.Equal(t, time.February, article.PublishedAt.Month(), "date selector should beat the first generic time tag")
	assert.Equal(t, 10, article.PublishedAt.Day())
}

func TestExtractArticleStaleProfileFallsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage(passingTitle))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	cfg.Logger = slog.New(slog.DiscardHandler)
	cfg.Profile = &sources.ScrapeProfile{ContentSelector: "div.redesigned-away"}
	a, err := NewAgent(server.URL, cfg)
	require.NoError(t, err)
	defer a.Cleanup()
	a.renderer = &fakeRenderer{}
	a.chunkDelayLo, a.chunkDelayHi = 0, 0
	a.jitterLo, a.jitterHi = 0, 0

	article := a.extractArticle(context.Background(), server.URL+"/news/150002")

	require.False(t, article.ExtractionFailed, "generic extraction should rescue a stale profile, got %s", article.Trace.FailureReason)
	assert.Equal(t, "article", article.Trace.RootSelector, "content should come from generic detection")
}

func TestScrapeCandidatesEscalatesSPAShell(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	a, fake := testAgent(t, server.URL)
	fake.html = fmt.Sprintf(`<html><body>
<a href="%s/news/110001">One</a>
<a href="%s/news/110002">Two</a>
</body></html>`, server.URL, server.URL)

	shell := `<html><body><div id="root"></div><script>window.__INITIAL_STATE__={}</script></body></html>`
	urls := a.scrapeCandidates(context.Background(), shell)

	assert.Equal(t, 1, fake.renderCalls(), "a client-rendered shell should be rendered in the browser")
	assert.Len(t, urls, 2, "anchors should come from the rendered document")
}

func TestScrapeCandidatesOrdersByPriority(t *testing.T) {
	a, _ := testAgent(t, "https://example.com")

	html := `<html><body>
<a href="https://example.com/some-quite-long-opaque-page-slug-here">Opaque</a>
<a href="https://example.com/news/110001">Story</a>
<a href="https://example.com/about">About</a>
</body></html>`
	urls := a.scrapeCandidates(context.Background(), html)

	require.Len(t, urls, 2, "the utility link should be filtered out")
	assert.Equal(t, "https://example.com/news/110001", urls[0], "confident article paths should sort first")
	assert.Equal(t, "https://example.com/some-quite-long-opaque-page-slug-here", urls[1])
}

func TestHardRequirementFailure(t *testing.T) {
	good := func() Article {
		return Article{
			Title:   passingTitle,
			Content: strings.Repeat("word ", 100),
			Image:   "https://static.example.com/i.jpg",
			Trace: ExtractionTrace{
				URLFetched:      true,
				ParagraphsFound: 4,
				RootSelector:    "article",
			},
		}
	}
	assert.Empty(t, hardRequirementFailure(good()), "the baseline record should pass")

	a := good()
	a.Content = "short"
	assert.NotEmpty(t, hardRequirementFailure(a), "short content should fail")

	a = good()
	a.Trace.ParagraphsFound = 2
	assert.NotEmpty(t, hardRequirementFailure(a), "two paragraphs should fail")

	a = good()
	a.Title = ""
	assert.NotEmpty(t, hardRequirementFailure(a), "an empty title should fail")

	a = good()
	a.Image = ""
	a.Description = "too short"
	assert.NotEmpty(t, hardRequirementFailure(a), "no image and a thin description should fail")

	a = good()
	a.Image = ""
	a.Description = strings.Repeat("description text ", 5)
	assert.Empty(t, hardRequirementFailure(a), "a long description can stand in for an image")

	a = good()
	a.Trace.URLFetched = false
	assert.NotEmpty(t, hardRequirementFailure(a), "an unfetched URL should fail")

	a = good()
	a.Trace.RootSelector = "rss-feed"
	assert.NotEmpty(t, hardRequirementFailure(a), "feed-derived selectors must be rejected")
}

func TestFeedSelector(t *testing.T) {
	assert.True(t, feedSelector("rss"))
	assert.True(t, feedSelector("atom.xml"))
	assert.True(t, feedSelector("sitemap-news"))
	assert.False(t, feedSelector("article"))
	assert.False(t, feedSelector("div[class*='post-content']"))
	assert.False(t, feedSelector("readability"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "First block.", excerpt("First block.\n\nSecond block."))

	long := strings.Repeat("alpha beta gamma ", 30)
	got := excerpt(long)
	assert.LessOrEqual(t, len(got), 304, "long excerpts should be truncated")
	assert.True(t, strings.HasSuffix(got, "…"))
}
