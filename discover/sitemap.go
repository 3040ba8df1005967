package discover

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/pevans/newshound/fetch"
)

var commonSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemaps.xml",
	"/wp-sitemap.xml",
}

// Large publishers ship sitemap indexes pointing at hundreds of children;
// bound both the fetch count and the collected URL count.
const (
	maxSitemapFetches = 50
	maxSitemapURLs    = 500
)

// Sitemap probes known sitemap locations and returns the page URLs of the
// first one that yields any. Sitemap indexes are crawled breadth-first with a
// visited set, so self-referencing or cyclic indexes terminate.
func Sitemap(ctx context.Context, client *fetch.Client, base *url.URL) []string {
	for _, path := range commonSitemapPaths {
		if urls := crawlSitemap(ctx, client, base.Scheme+"://"+base.Host+path); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func crawlSitemap(ctx context.Context, client *fetch.Client, sitemapURL string) []string {
	queue := []string{sitemapURL}
	visited := make(map[string]bool)
	var pages []string

	for len(queue) > 0 && len(visited) < maxSitemapFetches {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		resp, err := client.Get(ctx, current)
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}

		children, locs, err := parseSitemap(resp.Body)
		if err != nil {
			continue
		}
		queue = append(queue, children...)
		for _, loc := range locs {
			pages = append(pages, loc)
			if len(pages) >= maxSitemapURLs {
				return pages
			}
		}
	}
	return pages
}

type sitemapIndex struct {
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type urlSet struct {
	URLs []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// parseSitemap returns child sitemap URLs for an index document, or page URLs
// for a urlset. Both unmarshal attempts succeed on either document shape, so
// the index interpretation is only taken when it actually found children.
func parseSitemap(data []byte) (children, pages []string, err error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return children, nil, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, nil, err
	}
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	return nil, pages, nil
}
