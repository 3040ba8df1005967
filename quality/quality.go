// Package quality scores extracted page content against boilerplate and
// article-structure patterns to decide whether it is a real article. Scoring
// is pure string work and deterministic: identical inputs always produce
// identical results.
package quality

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Result is the outcome of validating one piece of extracted content.
//
// IsValid reflects the numeric score alone. HasRealArticleContent is the
// conjunctive gate: any single disqualifying flag fails the article
// regardless of score.
type Result struct {
	IsValid               bool     `json:"is_valid"`
	Score                 int      `json:"score"`
	Reasons               []string `json:"reasons,omitempty"`
	IsListingPage         bool     `json:"is_listing_page"`
	IsContactPage         bool     `json:"is_contact_page"`
	IsAdvertisement       bool     `json:"is_advertisement"`
	IsFooterContent       bool     `json:"is_footer_content"`
	HasRealArticleContent bool     `json:"has_real_article_content"`
}

// Config holds the tunable gate thresholds.
type Config struct {
	MinScore         int
	MinContentLength int
	MinParagraphs    int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinScore:         60,
		MinContentLength: 300,
		MinParagraphs:    3,
	}
}

// Penalty weights. Score starts at 100 and never leaves [0, 100].
const (
	penaltyContact       = 50
	penaltyAdvertisement = 50
	penaltyFooter        = 40
	penaltyListing       = 60
	penaltyCopyright     = 30
	penaltyPerParagraph  = 20
	penaltyShortContent  = 30
	penaltyTitleOverlap  = 20
	penaltyNoIndicators  = 25
	penaltyShortParas    = 15
	penaltyLongParas     = 10
)

// Match-count thresholds before a pattern family sets its flag. A lone email
// address or "read more" link is normal in prose; density is the signal.
const (
	contactMatchThreshold   = 3
	adMatchThreshold        = 2
	listingMatchThreshold   = 3
	footerMatchThreshold    = 2
	copyrightMatchThreshold = 2
)

// footerShortLimit is the text length under which footer-pattern density
// means the content is footer boilerplate rather than an article that
// happens to end in one.
const footerShortLimit = 600

var contactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]\d{4}`),
	regexp.MustCompile(`\+\d{1,3}[\s.-]?\d{2,4}[\s.-]?\d{3,4}[\s.-]?\d{2,4}`),
	regexp.MustCompile(`(?i)\bcontact us\b`),
	regexp.MustCompile(`(?i)\bget in touch\b`),
	regexp.MustCompile(`(?i)\breach us\b`),
	regexp.MustCompile(`(?i)\bcustomer (service|support)\b`),
	regexp.MustCompile(`(?i)\bp\.?o\.? box\b`),
	regexp.MustCompile(`(?i)\b(opening|business|office) hours\b`),
	regexp.MustCompile(`(?i)\bvisit us at\b`),
}

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\badvertisement\b`),
	regexp.MustCompile(`(?i)\badvertorial\b`),
	regexp.MustCompile(`(?i)\bsponsored( content| by| post)?\b`),
	regexp.MustCompile(`(?i)\bpromoted\b`),
	regexp.MustCompile(`(?i)\b(buy|shop|order) now\b`),
	regexp.MustCompile(`(?i)\blimited time offer\b`),
	regexp.MustCompile(`(?i)\bspecial offer\b`),
	regexp.MustCompile(`(?i)\bdiscount code\b`),
	regexp.MustCompile(`(?i)\d{1,2}% off\b`),
	regexp.MustCompile(`(?i)\bfree trial\b`),
	regexp.MustCompile(`(?i)\bsubscribe (now|today)\b`),
}

var footerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\ball rights reserved\b`),
	regexp.MustCompile(`(?i)\bterms of (use|service)\b`),
	regexp.MustCompile(`(?i)\bprivacy policy\b`),
	regexp.MustCompile(`(?i)\bcookie (policy|settings)\b`),
	regexp.MustCompile(`(?i)\bpowered by\b`),
	regexp.MustCompile(`(?i)\bback to top\b`),
	regexp.MustCompile(`(?i)\bsite ?map\b`),
}

var listingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bread more\b`),
	regexp.MustCompile(`(?i)\bview all\b`),
	regexp.MustCompile(`(?i)\bload more\b`),
	regexp.MustCompile(`(?i)\b(older|newer) posts\b`),
	regexp.MustCompile(`(?i)\b(next|previous) page\b`),
	regexp.MustCompile(`(?i)\bmore (stories|articles)\b`),
	regexp.MustCompile(`(?i)\brelated articles\b`),
	regexp.MustCompile(`(?i)\blatest (news|stories|posts)\b`),
	regexp.MustCompile(`(?i)\bsee all\b`),
	regexp.MustCompile(`(?i)\bsort by\b`),
	regexp.MustCompile(`(?i)\bfilter by\b`),
}

var copyrightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`©|&copy;`),
	regexp.MustCompile(`(?i)\bcopyright\s+(\d{4}|©)`),
	regexp.MustCompile(`(?i)\ball rights reserved\b`),
	regexp.MustCompile(`(?i)reproduction .{0,40}prohibited`),
}

// positivePatterns are article-structure markers. They are matched against
// the raw input so callers that pass extraction-root HTML get credit for
// semantic markup.
var positivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<article[\s>]`),
	regexp.MustCompile(`(?i)<time[^>]+datetime`),
	regexp.MustCompile(`(?i)itemprop="articleBody"`),
	regexp.MustCompile(`(?i)property="article:published_time"`),
	regexp.MustCompile(`(?i)"og:type"\s+content="article"`),
	regexp.MustCompile(`(?i)class="[^"]*(byline|author|article-body|story-body|post-content)`),
	regexp.MustCompile(`(?i)"datePublished"`),
	regexp.MustCompile(`(?i)\bby [A-Z][a-z]+ [A-Z][a-z]+\b`),
}

var pTagPattern = regexp.MustCompile(`(?i)<p[\s>]`)

// Validator applies the quality gate to extracted content.
type Validator struct {
	cfg   Config
	strip *bluemonday.Policy
}

// New creates a validator. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.MinScore == 0 {
		cfg.MinScore = def.MinScore
	}
	if cfg.MinContentLength == 0 {
		cfg.MinContentLength = def.MinContentLength
	}
	if cfg.MinParagraphs == 0 {
		cfg.MinParagraphs = def.MinParagraphs
	}
	return &Validator{cfg: cfg, strip: bluemonday.StrictPolicy()}
}

// Validate scores content against the pattern families. The content may be
// the extraction root's HTML or already-plain text; text metrics are computed
// on a tag-stripped copy either way.
func (v *Validator) Validate(content, title, rawURL string) Result {
	res := Result{Score: 100}

	text := v.plainText(content)
	paragraphs := countParagraphs(content, text)

	contactHits := countMatches(contactPatterns, text)
	if u, err := url.Parse(rawURL); err == nil && strings.Contains(strings.ToLower(u.Path), "contact") {
		contactHits += contactMatchThreshold
	}
	if contactHits >= contactMatchThreshold {
		res.IsContactPage = true
		res.Score -= penaltyContact
		res.Reasons = append(res.Reasons, fmt.Sprintf("contact page patterns (%d matches)", contactHits))
	}

	if n := countMatches(adPatterns, text); n >= adMatchThreshold {
		res.IsAdvertisement = true
		res.Score -= penaltyAdvertisement
		res.Reasons = append(res.Reasons, fmt.Sprintf("advertisement patterns (%d matches)", n))
	}

	if n := countMatches(footerPatterns, text); n >= footerMatchThreshold && len(text) < footerShortLimit {
		res.IsFooterContent = true
		res.Score -= penaltyFooter
		res.Reasons = append(res.Reasons, "footer boilerplate in short content")
	}

	if n := countMatches(listingPatterns, text); n >= listingMatchThreshold {
		res.IsListingPage = true
		res.Score -= penaltyListing
		res.Reasons = append(res.Reasons, fmt.Sprintf("listing page cues (%d matches)", n))
	}

	if n := countMatches(copyrightPatterns, text); n >= copyrightMatchThreshold {
		res.Score -= penaltyCopyright
		res.Reasons = append(res.Reasons, "copyright boilerplate")
	}

	if paragraphs < v.cfg.MinParagraphs {
		missing := v.cfg.MinParagraphs - paragraphs
		res.Score -= penaltyPerParagraph * missing
		res.Reasons = append(res.Reasons, fmt.Sprintf("only %d paragraphs", paragraphs))
	}

	if len(text) < v.cfg.MinContentLength {
		res.Score -= penaltyShortContent
		res.Reasons = append(res.Reasons, fmt.Sprintf("content length %d below %d", len(text), v.cfg.MinContentLength))
	}

	if titleOverlap(title, text) < 0.30 {
		res.Score -= penaltyTitleOverlap
		res.Reasons = append(res.Reasons, "title barely overlaps content")
	}

	if countMatches(positivePatterns, content) == 0 {
		res.Score -= penaltyNoIndicators
		res.Reasons = append(res.Reasons, "no article structure markers")
	}

	if paragraphs > 0 {
		avg := len(text) / paragraphs
		if avg < 50 {
			res.Score -= penaltyShortParas
			res.Reasons = append(res.Reasons, fmt.Sprintf("average paragraph only %d chars", avg))
		} else if avg > 2000 {
			res.Score -= penaltyLongParas
			res.Reasons = append(res.Reasons, fmt.Sprintf("average paragraph %d chars", avg))
		}
	}

	if res.Score < 0 {
		res.Score = 0
	}

	res.IsValid = res.Score >= v.cfg.MinScore
	res.HasRealArticleContent = !res.IsListingPage &&
		!res.IsContactPage &&
		!res.IsAdvertisement &&
		!res.IsFooterContent &&
		len(text) >= v.cfg.MinContentLength &&
		paragraphs >= v.cfg.MinParagraphs &&
		res.Score >= v.cfg.MinScore

	return res
}

// plainText strips markup and collapses entities so the pattern families see
// the words a reader would.
func (v *Validator) plainText(content string) string {
	if !strings.Contains(content, "<") {
		return strings.TrimSpace(content)
	}
	stripped := v.strip.Sanitize(content)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// countParagraphs prefers <p> tags when the input is markup, falling back to
// blank-line separation for plain text.
func countParagraphs(content, text string) int {
	if tags := len(pTagPattern.FindAllStringIndex(content, -1)); tags > 0 {
		return tags
	}
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

func countMatches(patterns []*regexp.Regexp, s string) int {
	total := 0
	for _, p := range patterns {
		total += len(p.FindAllStringIndex(s, -1))
	}
	return total
}

// titleOverlap is the fraction of significant title words that appear in the
// content.
func titleOverlap(title, text string) float64 {
	lower := strings.ToLower(text)
	words := strings.Fields(strings.ToLower(title))

	significant := 0
	found := 0
	for _, w := range words {
		w = strings.Trim(w, `.,:;!?"'()[]`)
		if len(w) <= 3 {
			continue
		}
		significant++
		if strings.Contains(lower, w) {
			found++
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(found) / float64(significant)
}
