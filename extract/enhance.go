package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// candidateSelectors are tried in priority order; on a score tie the earlier
// selector wins.
var candidateSelectors = []string{
	"article",
	"main",
	"[role='main']",
	"div[class*='article-body']",
	"div[class*='article-content']",
	"div[class*='story-body']",
	"div[class*='post-content']",
	"div[class*='entry-content']",
	"section[class*='article']",
	"div[class*='content']",
	"div[id*='content']",
}

// maxLinkDensity rejects a candidate root when more than half of its text
// sits inside anchors. Navigation blocks and related-story rails look exactly
// like this.
const maxLinkDensity = 0.5

type candidate struct {
	sel        *goquery.Selection
	selector   string
	paragraphs int
	textLen    int
}

func (c *candidate) score() int {
	return c.paragraphs*200 + c.textLen
}

// Enhanced scores DOM candidates directly and extracts from the best one.
// Used when the readability pass comes back under MinReadableLength; also
// rescues article bodies buried in markup readability mis-scores. pageURL may
// be nil.
func Enhanced(html string, pageURL *url.URL) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ErrNoContent
	}
	doc.Find(boilerplateSelectors).Remove()

	best := bestCandidate(doc)
	if best == nil {
		return nil, ErrNoContent
	}

	blocks := selectionBlocks(best.sel)
	if len(blocks) == 0 {
		return nil, ErrNoContent
	}

	rootHTML, _ := goquery.OuterHtml(best.sel)
	return &Result{
		Content:      strings.Join(blocks, "\n\n"),
		HTML:         strings.TrimSpace(rootHTML),
		Paragraphs:   best.paragraphs,
		RootSelector: best.selector,
	}, nil
}

// FromSelector extracts from a caller-chosen root instead of scored
// candidates. Site profiles use this when generic detection picks the wrong
// block. The selection still has to clear the same text and link-density
// bars, so a stale selector degrades to ErrNoContent rather than garbage.
func FromSelector(html, selector string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ErrNoContent
	}
	doc.Find(boilerplateSelectors).Remove()

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrNoContent
	}

	c := scoreCandidate(sel, selector)
	if c == nil {
		return nil, ErrNoContent
	}

	blocks := selectionBlocks(sel)
	if len(blocks) == 0 {
		return nil, ErrNoContent
	}

	rootHTML, _ := goquery.OuterHtml(sel)
	return &Result{
		Content:      strings.Join(blocks, "\n\n"),
		HTML:         strings.TrimSpace(rootHTML),
		Paragraphs:   c.paragraphs,
		RootSelector: selector,
	}, nil
}

func bestCandidate(doc *goquery.Document) *candidate {
	var best *candidate
	consider := func(selector string) func(int, *goquery.Selection) {
		return func(i int, s *goquery.Selection) {
			c := scoreCandidate(s, selector)
			if c == nil {
				return
			}
			if best == nil || c.score() > best.score() {
				best = c
			}
		}
	}

	for _, selector := range candidateSelectors {
		doc.Find(selector).Each(consider(selector))
	}
	if best != nil {
		return best
	}

	// No named candidate: fall back to the densest generic block.
	doc.Find("div, section").Each(func(i int, s *goquery.Selection) {
		c := scoreCandidate(s, goquery.NodeName(s))
		if c == nil {
			return
		}
		if best == nil || c.score() > best.score() {
			best = c
		}
	})
	return best
}

// scoreCandidate returns nil when the selection cannot be an article root:
// too little text, or link density above the ceiling.
func scoreCandidate(s *goquery.Selection, selector string) *candidate {
	text := normalizeSpace(s.Text())
	if len(text) < MinReadableLength {
		return nil
	}

	linkLen := 0
	s.Find("a").Each(func(i int, a *goquery.Selection) {
		linkLen += len(normalizeSpace(a.Text()))
	})
	if float64(linkLen) > maxLinkDensity*float64(len(text)) {
		return nil
	}

	paragraphs := 0
	s.Find("p").Each(func(i int, p *goquery.Selection) {
		if strings.TrimSpace(p.Text()) != "" {
			paragraphs++
		}
	})

	return &candidate{sel: s, selector: selector, paragraphs: paragraphs, textLen: len(text)}
}

// selectionBlocks is paragraphBlocks scoped to an already-selected root.
func selectionBlocks(s *goquery.Selection) []string {
	var blocks []string
	appendText := func(i int, el *goquery.Selection) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			blocks = append(blocks, normalizeSpace(text))
		}
	}

	s.Find("h1, h2, h3, h4, h5, h6").Each(appendText)
	s.Find("p").Each(appendText)
	s.Find("pre").Each(appendText)
	s.Find("li").Each(appendText)

	if len(blocks) == 0 {
		if text := normalizeSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	return blocks
}
