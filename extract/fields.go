package extract

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/araddon/dateparse"
)

// Meta holds page metadata pulled by single-purpose extractors from the
// original document, independent of which content pass won.
type Meta struct {
	Title       string
	Description string
	Image       string
	Author      string
	Published   *time.Time
	Category    string
}

// PageMeta runs every field extractor over the page HTML. pageURL resolves
// relative image URLs and supplies the category path heuristic; it may be nil.
func PageMeta(html string, pageURL *url.URL) Meta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Meta{}
	}
	return Meta{
		Title:       pageTitle(doc),
		Description: pageDescription(doc),
		Image:       pageImage(doc, pageURL),
		Author:      pageAuthor(doc),
		Published:   pagePublished(doc),
		Category:    pageCategory(doc, pageURL),
	}
}

// Overrides are site-profile field selectors applied on top of the generic
// metadata pass. An empty selector leaves the generic value in place.
type Overrides struct {
	Title      string
	Author     string
	Date       string
	DateLayout string
}

// ApplyOverrides returns meta with any matching override selectors applied.
// A selector that matches nothing keeps the generic value.
func ApplyOverrides(html string, meta Meta, o Overrides) Meta {
	if o.Title == "" && o.Author == "" && o.Date == "" {
		return meta
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}

	if o.Title != "" {
		if text := normalizeSpace(doc.Find(o.Title).First().Text()); text != "" {
			meta.Title = text
		}
	}
	if o.Author != "" {
		if text := normalizeSpace(doc.Find(o.Author).First().Text()); text != "" {
			meta.Author = text
		}
	}
	if o.Date != "" {
		sel := doc.Find(o.Date).First()
		raw, ok := sel.Attr("datetime")
		if !ok {
			raw = sel.Text()
		}
		raw = strings.TrimSpace(raw)

		switch {
		case raw == "":
		case o.DateLayout != "":
			if t, err := time.Parse(o.DateLayout, raw); err == nil {
				meta.Published = &t
			}
		default:
			if t := parseDate(raw); t != nil {
				meta.Published = t
			}
		}
	}

	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// pageTitle prefers the title tag, then og:title, then the first h1.
func pageTitle(doc *goquery.Document) string {
	if title := normalizeSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title := metaContent(doc, "meta[property='og:title']"); title != "" {
		return title
	}
	return normalizeSpace(doc.Find("h1").First().Text())
}

func pageDescription(doc *goquery.Document) string {
	if desc := metaContent(doc, "meta[property='og:description']"); desc != "" {
		return desc
	}
	return metaContent(doc, "meta[name='description']")
}

func pageImage(doc *goquery.Document, pageURL *url.URL) string {
	if img := metaContent(doc, "meta[property='og:image']"); img != "" {
		return absoluteURL(pageURL, img)
	}
	if img := metaContent(doc, "meta[name='twitter:image']"); img != "" {
		return absoluteURL(pageURL, img)
	}
	if href, ok := doc.Find("link[rel='image_src']").First().Attr("href"); ok {
		return absoluteURL(pageURL, strings.TrimSpace(href))
	}

	var found string
	doc.Find("article img, main img, img").EachWithBreak(func(i int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		src = strings.TrimSpace(src)
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		found = absoluteURL(pageURL, src)
		return false
	})
	return found
}

func absoluteURL(base *url.URL, raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(u).String()
	}
	if u.IsAbs() {
		return u.String()
	}
	return ""
}

func pageAuthor(doc *goquery.Document) string {
	for _, selector := range []string{"meta[name='author']", "meta[property='article:author']"} {
		if v := metaContent(doc, selector); v != "" && !strings.HasPrefix(v, "http") {
			return CleanAuthor(v)
		}
	}
	bylineSelectors := []string{
		"[rel='author']",
		"[itemprop='author'] [itemprop='name']",
		"[itemprop='author']",
		"[class*='byline']",
		"[class*='author']",
	}
	for _, selector := range bylineSelectors {
		text := normalizeSpace(doc.Find(selector).First().Text())
		// Long matches are author bios or containers, not bylines.
		if text != "" && len(text) <= 120 {
			return CleanAuthor(text)
		}
	}
	return ""
}

// CleanAuthor strips byline prefixes and normalizes multi-author separators
// to a comma-joined list.
func CleanAuthor(raw string) string {
	text := normalizeSpace(raw)
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "by ") {
		text = strings.TrimSpace(text[3:])
	}
	if text == "" {
		return ""
	}

	var parts []string
	switch {
	case strings.Contains(text, ", "):
		parts = strings.Split(text, ", ")
	case strings.Contains(text, " and "):
		parts = strings.Split(text, " and ")
	case strings.Contains(text, " & "):
		parts = strings.Split(text, " & ")
	default:
		return text
	}

	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			authors = append(authors, part)
		}
	}
	return strings.Join(authors, ", ")
}

var publishedMetaSelectors = []string{
	"meta[property='article:published_time']",
	"meta[name='article:published_time']",
	"meta[property='og:published_time']",
	"meta[itemprop='datePublished']",
	"meta[name='date']",
	"meta[name='publish-date']",
}

func pagePublished(doc *goquery.Document) *time.Time {
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t := parseDate(v); t != nil {
			return t
		}
	}
	for _, selector := range publishedMetaSelectors {
		if t := parseDate(metaContent(doc, selector)); t != nil {
			return t
		}
	}
	return parseDate(jsonLDDatePublished(doc))
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &t
}

func jsonLDDatePublished(doc *goquery.Document) string {
	var found string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if v := findDatePublished(data); v != "" {
			found = v
			return false
		}
		return true
	})
	return found
}

// findDatePublished walks JSON-LD, which may be a single object, an array,
// or an @graph wrapper.
func findDatePublished(v any) string {
	switch node := v.(type) {
	case map[string]any:
		if s, ok := node["datePublished"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if graph, ok := node["@graph"]; ok {
			return findDatePublished(graph)
		}
	case []any:
		for _, item := range node {
			if s := findDatePublished(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// genericSegments never make useful categories on their own.
var genericSegments = map[string]bool{
	"news": true, "article": true, "articles": true, "story": true,
	"stories": true, "post": true, "posts": true, "blog": true,
	"index": true, "pages": true,
}

func pageCategory(doc *goquery.Document, pageURL *url.URL) string {
	if v := metaContent(doc, "meta[property='article:section']"); v != "" {
		return v
	}
	if pageURL == nil {
		return ""
	}
	segments := strings.Split(strings.Trim(pageURL.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	if s := segments[len(segments)-2]; isCategorySegment(s) {
		return s
	}
	return ""
}

func isCategorySegment(s string) bool {
	if len(s) < 3 || len(s) > 30 || genericSegments[s] {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return true
}

// DetectLanguage returns the ISO 639-3 code for the dominant language of the
// text, sampling the first hundred words.
func DetectLanguage(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	words := strings.Fields(trimmed)
	if len(words) > 100 {
		words = words[:100]
	}
	info := whatlanggo.Detect(strings.Join(words, " "))
	return info.Lang.Iso6393()
}
