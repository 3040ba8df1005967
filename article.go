package newshound

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Article is a single normalized article produced by the pipeline. Records
// are created once per extraction attempt and never mutated; a re-extraction
// produces a fresh record that replaces any cached one.
type Article struct {
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content"`
	Image       string     `json:"image,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Category    string     `json:"category,omitempty"`
	Language    string     `json:"language,omitempty"`

	Trace ExtractionTrace `json:"extraction_trace"`

	// ExtractionFailed is the authoritative accept/reject flag. Failed
	// records are still returned so callers can inspect the trace, but they
	// must never be treated as usable content.
	ExtractionFailed bool `json:"extraction_failed"`
}

// ExtractionTrace records how an article was obtained and why it passed or
// failed the acceptance gates.
type ExtractionTrace struct {
	URLFetched      bool     `json:"url_fetched"`
	FetchMethod     string   `json:"fetch_method,omitempty"`
	RootSelector    string   `json:"root_selector,omitempty"`
	ParagraphsFound int      `json:"paragraphs_found"`
	ContentLength   int      `json:"content_length"`
	FallbackUsed    bool     `json:"fallback_used,omitempty"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	QualityScore    *int     `json:"quality_score,omitempty"`
	QualityReasons  []string `json:"quality_reasons,omitempty"`
	IsListingPage   *bool    `json:"is_listing_page,omitempty"`
	IsContactPage   *bool    `json:"is_contact_page,omitempty"`
	IsAdvertisement *bool    `json:"is_advertisement,omitempty"`
}

// Fetch methods recorded in the extraction trace.
const (
	FetchMethodHTML = "html"
	FetchMethodJS   = "js"
)

// Failure reasons recorded in the extraction trace. These are stable values
// that collaborators may match on.
const (
	FailureListingPage     = "LISTING_PAGE_DETECTED"
	FailureFetch           = "FETCH_FAILED"
	FailureContentTooShort = "CONTENT_TOO_SHORT"
	FailureQualityCheck    = "QUALITY_CHECK_FAILED"
	FailureRequirements    = "REQUIREMENTS_NOT_MET"
	FailureRobots          = "ROBOTS_DISALLOWED"
	FailureInternal        = "EXTRACTION_ERROR"
)

// SourceFromURL derives the registrable domain for an article URL, e.g.
// "news.example.co.uk" becomes "example.co.uk". A leading "www." is dropped
// when the public suffix list cannot decide.
func SourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return strings.TrimPrefix(host, "www.")
}
