// Package discover implements the candidate-URL stages of the acquisition
// cascade: feed probing, sitemap crawling, and homepage link scraping. Each
// stage only produces URLs; extraction and acceptance happen elsewhere.
package discover

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/pevans/newshound/fetch"
)

// commonFeedPaths are probed in order before falling back to alternate links
// advertised by the homepage.
var commonFeedPaths = []string{
	"/feed",
	"/rss",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/index.xml",
}

const maxFeedLinks = 100

// Feeds probes common feed locations and homepage alternate links, parses
// whatever responds as RSS or Atom, and returns the entry URLs. Feed entries
// are only ever a source of links; their inline content is never used.
func Feeds(ctx context.Context, client *fetch.Client, base *url.URL, homepageHTML string) []string {
	candidates := make([]string, 0, len(commonFeedPaths)+4)
	for _, path := range commonFeedPaths {
		candidates = append(candidates, base.Scheme+"://"+base.Host+path)
	}
	candidates = append(candidates, FeedAlternates(homepageHTML, base)...)

	var links []string
	seen := make(map[string]bool)
	for _, feedURL := range candidates {
		if seen[feedURL] {
			continue
		}
		seen[feedURL] = true

		for _, link := range fetchFeedLinks(ctx, client, feedURL) {
			if seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
			if len(links) >= maxFeedLinks {
				return links
			}
		}
	}
	return links
}

// FeedAlternates extracts feed URLs advertised via link rel="alternate" tags.
func FeedAlternates(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var feeds []string
	doc.Find("link[rel='alternate']").Each(func(i int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(typ, "rss+xml") && !strings.Contains(typ, "atom+xml") {
			return
		}
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if resolved := resolveAgainst(base, href); resolved != "" {
			feeds = append(feeds, resolved)
		}
	})
	return feeds
}

func fetchFeedLinks(ctx context.Context, client *fetch.Client, feedURL string) []string {
	resp, err := client.Get(ctx, feedURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil
	}

	feed, err := gofeed.NewParser().ParseString(resp.HTML())
	if err != nil {
		return nil
	}

	feedBase, _ := url.Parse(feedURL)
	links := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		if link = strings.TrimSpace(link); link == "" {
			continue
		}
		if resolved := resolveAgainst(feedBase, link); resolved != "" {
			links = append(links, resolved)
		}
	}
	return links
}

// resolveAgainst makes href absolute relative to base, returning "" for
// unparseable input.
func resolveAgainst(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}
	return u.String()
}
