package newshound

// Discovery methods, in the order the cascade tries them.
const (
	MethodRSS        = "rss"
	MethodSitemap    = "sitemap"
	MethodScraping   = "scraping"
	MethodExtraction = "extraction"
)

// FetchResult is the outcome of a full pipeline run. FetchNews never panics
// or returns an error; every failure mode ends up here with Success false and
// a human-readable Error.
type FetchResult struct {
	Articles []Article `json:"articles"`
	Success  bool      `json:"success"`
	Method   string    `json:"method,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Accepted returns only the articles that passed both acceptance gates.
func (r FetchResult) Accepted() []Article {
	var out []Article
	for _, a := range r.Articles {
		if !a.ExtractionFailed {
			out = append(out, a)
		}
	}
	return out
}

// countAccepted reports how many articles in the batch passed extraction.
func countAccepted(articles []Article) int {
	n := 0
	for _, a := range articles {
		if !a.ExtractionFailed {
			n++
		}
	}
	return n
}
