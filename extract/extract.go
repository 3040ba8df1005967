// Package extract turns a fetched article page into clean text and metadata.
// The primary pass runs a readability engine over pre-cleaned HTML; the
// enhanced pass scores DOM candidates directly when readability comes back
// thin; targeted single-field extractors backfill metadata from the original
// document.
package extract

import (
	"errors"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// MinReadableLength is the floor under which extracted text is treated as a
// miss. Shorter output usually means the extractor grabbed a title block or a
// bot-protection interstitial, not the article.
const MinReadableLength = 200

// ErrNoContent reports that no usable text could be located in the page.
var ErrNoContent = errors.New("no article content found")

// Result is extracted article content. Metadata fields are filled separately
// by PageMeta so both extraction passes share the same backfills.
type Result struct {
	Content      string
	HTML         string
	Paragraphs   int
	RootSelector string
}

// boilerplateSelectors are stripped before any content pass. Chrome around
// the article poisons both readability scoring and candidate scoring.
const boilerplateSelectors = "script, style, noscript, iframe, form, nav, header, footer, aside"

// Readability extracts article text with the readability engine, falling back
// to structural paragraph extraction when the engine yields under
// MinReadableLength characters. pageURL may be nil.
func Readability(html string, pageURL *url.URL) (*Result, error) {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" {
		return nil, ErrNoContent
	}

	cleaned := trimmed
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed)); err == nil {
		doc.Find(boilerplateSelectors).Remove()
		doc.Find("[class*='social'], [class*='share'], [class*='comment']").Remove()
		if out, err := doc.Html(); err == nil && out != "" {
			cleaned = out
		}
	}

	if article, err := readability.FromReader(strings.NewReader(cleaned), pageURL); err == nil {
		var textBuf strings.Builder
		if err := article.RenderText(&textBuf); err == nil {
			text := strings.TrimSpace(textBuf.String())
			if len(text) >= MinReadableLength {
				var htmlBuf strings.Builder
				if err := article.RenderHTML(&htmlBuf); err == nil {
					if blocks := paragraphBlocks(htmlBuf.String()); len(blocks) > 0 {
						return &Result{
							Content:      strings.Join(blocks, "\n\n"),
							HTML:         strings.TrimSpace(htmlBuf.String()),
							Paragraphs:   countParagraphTags(htmlBuf.String()),
							RootSelector: "readability",
						}, nil
					}
				}
				return &Result{
					Content:      text,
					Paragraphs:   blockCount(text),
					RootSelector: "readability",
				}, nil
			}
		}
	}

	// Engine miss: extract structure directly so the caller sees whatever
	// text exists and can decide to escalate on length.
	blocks := paragraphBlocks(cleaned)
	if len(blocks) == 0 {
		stripped := strings.TrimSpace(stripTags(cleaned))
		if stripped == "" {
			return nil, ErrNoContent
		}
		return &Result{Content: stripped, Paragraphs: blockCount(stripped), RootSelector: "body"}, nil
	}
	return &Result{
		Content:      strings.Join(blocks, "\n\n"),
		HTML:         cleaned,
		Paragraphs:   countParagraphTags(cleaned),
		RootSelector: "body",
	}, nil
}

// paragraphBlocks collects readable text blocks in document order groups:
// headings first, then paragraphs, code blocks, and list items.
func paragraphBlocks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var blocks []string
	appendText := func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			blocks = append(blocks, normalizeSpace(text))
		}
	}

	doc.Find("h1, h2, h3, h4, h5, h6").Each(appendText)
	doc.Find("p").Each(appendText)
	doc.Find("pre").Each(appendText)
	doc.Find("li").Each(appendText)
	return blocks
}

// countParagraphTags counts non-empty <p> elements. Falls back to blank-line
// block counting for markup without paragraph tags.
func countParagraphTags(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	count := 0
	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			count++
		}
	})
	if count == 0 {
		return blockCount(strings.TrimSpace(stripTags(html)))
	}
	return count
}

func blockCount(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

func stripTags(html string) string {
	return bluemonday.StrictPolicy().Sanitize(html)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
