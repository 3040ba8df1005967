// Package classify maps URLs on a publisher's site to page types and
// crawl/extract eligibility. Classification is pure string work: no network
// or filesystem access, safe to call from any goroutine.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// PageType is the coarse role a URL plays on a publisher's site.
type PageType string

const (
	TypeHomepage PageType = "homepage"
	TypeListing  PageType = "listing"
	TypeCategory PageType = "category"
	TypeArticle  PageType = "article"
	TypeUtility  PageType = "utility"
	TypeExternal PageType = "external"
)

// Classification is the ephemeral result of classifying one URL. It is never
// persisted; callers recompute it on every call.
type Classification struct {
	Type          PageType `json:"type"`
	ShouldCrawl   bool     `json:"should_crawl"`
	ShouldExtract bool     `json:"should_extract"`
	// Priority orders candidates for extraction: 1 is the homepage, larger
	// values are less certain guesses. Types that are never visited carry 0.
	Priority int `json:"priority"`
}

// Validation reports whether a URL is usable at all and why not.
type Validation struct {
	Valid  bool     `json:"valid"`
	Type   PageType `json:"type"`
	Reason string   `json:"reason,omitempty"`
}

// socialDomains are networks whose links routinely appear on publisher pages
// but never lead to extractable first-party articles.
var socialDomains = map[string]bool{
	"facebook.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"instagram.com": true,
	"linkedin.com":  true,
	"youtube.com":   true,
	"tiktok.com":    true,
	"pinterest.com": true,
	"reddit.com":    true,
	"threads.net":   true,
	"telegram.org":  true,
	"t.me":          true,
	"whatsapp.com":  true,
	"snapchat.com":  true,
}

// listingSuffixes are exact trailing path segments that mark index pages
// worth crawling but never extracting.
var listingSuffixes = []string{
	"/latest",
	"/news",
	"/headlines",
	"/stories",
	"/archive",
	"/all",
}

// utilitySegments are path segments that mark pages with no news value at
// all: neither crawled nor extracted.
var utilitySegments = map[string]bool{
	"search":     true,
	"login":      true,
	"signin":     true,
	"signup":     true,
	"register":   true,
	"account":    true,
	"profile":    true,
	"cart":       true,
	"checkout":   true,
	"admin":      true,
	"wp-admin":   true,
	"privacy":    true,
	"terms":      true,
	"legal":      true,
	"cookies":    true,
	"contact":    true,
	"about":      true,
	"faq":        true,
	"help":       true,
	"support":    true,
	"subscribe":  true,
	"newsletter": true,
	"advertise":  true,
	"careers":    true,
	"jobs":       true,
	"gallery":    true,
	"galleries":  true,
	"photos":     true,
	"tools":      true,
	"converter":  true,
	"unicode":    true,
	"feed":       true,
	"rss":        true,
	"sitemap":    true,
	"tag":        true,
	"tags":       true,
	"author":     true,
}

// articleSegments are leading path segments that strongly suggest an article
// when more path follows them. Topic sections count: publishers file stories
// under /politics/..., /sports/... and similar.
var articleSegments = map[string]bool{
	"news":          true,
	"article":       true,
	"articles":      true,
	"story":         true,
	"stories":       true,
	"post":          true,
	"posts":         true,
	"blog":          true,
	"politics":      true,
	"business":      true,
	"economy":       true,
	"sports":        true,
	"sport":         true,
	"world":         true,
	"local":         true,
	"tech":          true,
	"technology":    true,
	"science":       true,
	"health":        true,
	"culture":       true,
	"opinion":       true,
	"entertainment": true,
}

// Minimum number of hyphen-separated words in a trailing slug before an
// otherwise unclassified path is guessed to be an article.
const minSlugWordCount = 4

var (
	paginationPattern = regexp.MustCompile(`/page/\d+`)
	slugIDPattern     = regexp.MustCompile(`/[a-z][a-z0-9-]*-\d{6,}(?:$|[/.?])`)
	fileExtPattern    = regexp.MustCompile(`\.[a-z0-9]{2,5}$`)
)

// Classifier classifies URLs relative to one configured base site.
type Classifier struct {
	baseHost string
}

// New creates a classifier for the site at seedURL. The seed's hostname,
// ignoring a leading "www.", becomes the base domain; subdomains of it are
// treated as on-site.
func New(seedURL string) (*Classifier, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("seed URL %q: scheme must be http or https", seedURL)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return nil, fmt.Errorf("seed URL %q has no hostname", seedURL)
	}
	return &Classifier{baseHost: host}, nil
}

// BaseHost returns the configured base hostname without a leading "www.".
func (c *Classifier) BaseHost() string {
	return c.baseHost
}

// Classify maps a URL to a page type plus crawl/extract flags. Rules apply
// in a fixed priority order; the first match wins.
func (c *Classifier) Classify(rawURL string) Classification {
	external := Classification{Type: TypeExternal}

	u, err := url.Parse(rawURL)
	if err != nil {
		return external
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return external
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !c.onSite(host) {
		return external
	}
	if isSocialHost(host) {
		return external
	}

	path := strings.ToLower(u.EscapedPath())
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	// Homepage: empty path, /home, or the odd case of a path repeating the
	// base hostname.
	if path == "" || path == "/" || path == "/home" || strings.Trim(path, "/") == c.baseHost {
		return Classification{Type: TypeHomepage, ShouldCrawl: true, Priority: 1}
	}

	segments := splitPath(path)

	if c.isListing(path) {
		return Classification{Type: TypeListing, ShouldCrawl: true, Priority: 2}
	}

	if isCategory(segments) {
		return Classification{Type: TypeCategory, ShouldCrawl: true, Priority: 2}
	}

	for _, seg := range segments {
		if utilitySegments[seg] {
			return Classification{Type: TypeUtility}
		}
	}

	// A bare section front like /politics is an index page, not a story.
	if len(segments) == 1 && articleSegments[segments[0]] {
		return Classification{Type: TypeListing, ShouldCrawl: true, Priority: 2}
	}

	for i, seg := range segments {
		if articleSegments[seg] && i < len(segments)-1 {
			return Classification{Type: TypeArticle, ShouldExtract: true, Priority: 3}
		}
	}

	if slugIDPattern.MatchString(path) {
		return Classification{Type: TypeArticle, ShouldExtract: true, Priority: 3}
	}

	if isOpaqueArticlePath(path, segments) {
		return Classification{Type: TypeArticle, ShouldExtract: true, Priority: 5}
	}

	return external
}

// Validate reports whether a URL can participate in the pipeline at all,
// with a reason when it cannot.
func (c *Classifier) Validate(rawURL string) Validation {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Validation{Valid: false, Type: TypeExternal, Reason: "URL does not parse"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Validation{Valid: false, Type: TypeExternal, Reason: "scheme must be http or https"}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if isSocialHost(host) {
		return Validation{Valid: false, Type: TypeExternal, Reason: "social network domain"}
	}
	if !c.onSite(host) {
		return Validation{Valid: false, Type: TypeExternal, Reason: "outside base domain " + c.baseHost}
	}

	return Validation{Valid: true, Type: c.Classify(rawURL).Type}
}

// IsArticleURL reports whether a URL should be treated as a single article
// for extraction. Used by discovery stages to filter candidate lists.
func (c *Classifier) IsArticleURL(rawURL string) bool {
	cls := c.Classify(rawURL)
	return cls.Type == TypeArticle && cls.ShouldExtract
}

func (c *Classifier) onSite(host string) bool {
	return host == c.baseHost || strings.HasSuffix(host, "."+c.baseHost)
}

func (c *Classifier) isListing(path string) bool {
	if paginationPattern.MatchString(path) {
		return true
	}
	for _, suffix := range listingSuffixes {
		if path == suffix || strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func isSocialHost(host string) bool {
	for domain := range socialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// isCategory matches /category/... paths that do not continue into an
// article-like segment.
func isCategory(segments []string) bool {
	for i, seg := range segments {
		if seg != "category" && seg != "categories" && seg != "section" {
			continue
		}
		rest := segments[i+1:]
		for _, r := range rest {
			if articleSegments[r] || slugIDPattern.MatchString("/"+r) {
				return false
			}
		}
		return true
	}
	return false
}

// isOpaqueArticlePath guesses that a long extension-less slug is an article.
// Low confidence; callers see it through the priority value.
func isOpaqueArticlePath(path string, segments []string) bool {
	if len(segments) == 0 || fileExtPattern.MatchString(path) {
		return false
	}
	last := segments[len(segments)-1]
	if len(last) >= 20 {
		return true
	}
	return strings.Count(last, "-") >= minSlugWordCount-1
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
