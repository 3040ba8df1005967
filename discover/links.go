package discover

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxPageLinks = 200

// PageLinks collects anchor targets from page HTML, resolved absolute,
// fragment-stripped, deduplicated in document order.
func PageLinks(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
			return true
		}

		resolved := resolveAgainst(base, href)
		if resolved == "" {
			return true
		}
		if u, err := url.Parse(resolved); err == nil {
			u.Fragment = ""
			resolved = u.String()
		}
		if seen[resolved] {
			return true
		}
		seen[resolved] = true
		links = append(links, resolved)
		return len(links) < maxPageLinks
	})
	return links
}

// spaMarkers appear only in shells of client-side apps whose real content
// exists after scripts run. Mount-point ids are weaker evidence (they also
// appear on server-rendered pages) and get the thin-body check below.
var spaMarkers = []string{
	"__INITIAL_STATE__",
	"window.__NUXT__",
	"BAILOUT_TO_CLIENT_SIDE_RENDERING",
}

// LooksLikeSPAShell reports whether homepage HTML is an app shell that needs
// browser rendering before its links are visible.
func LooksLikeSPAShell(html string) bool {
	for _, marker := range spaMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find("#root, #app, #__next, [data-reactroot]").Length() == 0 {
		return false
	}
	// A mount point plus near-empty body means the shell case; a mount point
	// on a page with real server-rendered text does not.
	return len(strings.TrimSpace(doc.Find("body").Text())) < 250
}
