package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<html>
<head><title>Council Approves Riverside Development Plan</title></head>
<body>
<nav><a href="/">Home</a><a href="/news">News</a><a href="/sports">Sports</a></nav>
<article>
<h1>Council Approves Riverside Development Plan</h1>
<p>The city council voted seven to two on Tuesday evening to approve the riverside development plan, ending a debate that has occupied public meetings for the better part of a year and drawn hundreds of residents to hearings.</p>
<p>Supporters of the plan argued that the new housing units and retail space would revitalize a stretch of waterfront that has sat largely unused since the cannery closed, bringing jobs and foot traffic back to the district.</p>
<p>Opponents raised concerns about flooding, traffic congestion on the two bridge approaches, and the displacement of the community garden that currently occupies the southern parcel of the site.</p>
<p>Construction is expected to begin in the spring, pending final permit approval from the regional water authority, with the first residential phase scheduled to open within two years of groundbreaking.</p>
<p>The council also directed staff to negotiate a relocation agreement for the garden, a condition added in response to public comment during the final hearing.</p>
</article>
<footer><p>Copyright 2024 Example Media. All rights reserved.</p></footer>
</body>
</html>`

func TestReadabilityExtractsArticle(t *testing.T) {
	pageURL, _ := url.Parse("https://example.com/news/riverside-plan-approved")
	result, err := Readability(articlePage, pageURL)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(result.Content), MinReadableLength)
	assert.GreaterOrEqual(t, result.Paragraphs, 3)
	assert.Contains(t, result.Content, "voted seven to two")
	assert.Contains(t, []string{"readability", "body"}, result.RootSelector)
}

func TestReadabilityStripsBoilerplate(t *testing.T) {
	result, err := Readability(articlePage, nil)
	require.NoError(t, err)

	assert.NotContains(t, result.Content, "All rights reserved", "footer should be stripped before extraction")
	assert.NotContains(t, result.Content, "Sports", "navigation should be stripped before extraction")
}

func TestReadabilityEmptyInput(t *testing.T) {
	_, err := Readability("", nil)
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = Readability("   \n\t  ", nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestReadabilityShortPageReturnsThinContent(t *testing.T) {
	result, err := Readability("<html><body><p>Too small.</p></body></html>", nil)
	require.NoError(t, err, "thin pages return thin content, the caller decides to escalate")

	assert.Less(t, len(result.Content), MinReadableLength)
	assert.Contains(t, result.Content, "Too small.")
}

const classedPage = `<html><body>
<div class="related-content">
<a href="/one">County fair returns this weekend with expanded midway</a>
<a href="/two">School board delays vote on boundary changes again</a>
<a href="/three">Local bakery wins statewide sourdough competition</a>
<a href="/four">Transit agency adds two routes on the east side</a>
<a href="/five">Library renovation enters its final phase this month</a>
</div>
<div class="post-content">
<p>The harbor commission released its annual dredging report on Monday, showing sediment accumulation at twice the rate projected when the channel was last surveyed five years ago.</p>
<p>Engineers attribute the change to upstream construction and a series of unusually wet winters, which together have pushed far more silt into the lower channel than the old models accounted for.</p>
<p>Without additional dredging, the report warns, the main shipping berth could become unusable for deep-draft vessels within three years, a scenario the port's largest tenants have already raised with commissioners.</p>
<p>The commission will take public comment on the proposed dredging schedule at its next meeting before sending a funding request to the state legislature.</p>
</div>
</body></html>`

func TestEnhancedPicksContentOverRelatedLinks(t *testing.T) {
	result, err := Enhanced(classedPage, nil)
	require.NoError(t, err)

	assert.Equal(t, "div[class*='post-content']", result.RootSelector)
	assert.Equal(t, 4, result.Paragraphs)
	assert.Contains(t, result.Content, "dredging report")
	assert.NotContains(t, result.Content, "sourdough competition", "link rail must not be chosen as content root")
}

func TestEnhancedPrefersArticleTag(t *testing.T) {
	page := `<html><body>
<article>
<p>Negotiators for the nurses union and the hospital system reached a tentative agreement early Friday, averting a strike that had been scheduled to begin Monday morning across all four campuses.</p>
<p>The three-year deal includes staffing-ratio commitments and a wage schedule that union leadership described as the strongest in the region, though members still have to ratify it.</p>
<p>Ballots go out next week, with results expected before the end of the month, and both sides said normal scheduling will continue in the meantime.</p>
</article>
<div class="content"><p>Sign up for our newsletter to get headlines in your inbox every morning.</p></div>
</body></html>`

	result, err := Enhanced(page, nil)
	require.NoError(t, err)

	assert.Equal(t, "article", result.RootSelector)
	assert.Contains(t, result.Content, "tentative agreement")
}

func TestEnhancedRejectsLinkDensePage(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div class="content">`)
	for i := 0; i < 20; i++ {
		b.WriteString(`<a href="/story">Another headline in the endless navigation block here</a> `)
	}
	b.WriteString(`</div></body></html>`)

	_, err := Enhanced(b.String(), nil)
	assert.ErrorIs(t, err, ErrNoContent, "a page that is all links has no article root")
}

func TestEnhancedGenericFallback(t *testing.T) {
	page := `<html><body><div class="wrapper">
<p>Volunteers planted more than four hundred native seedlings along the creek bank on Saturday, the first stage of a restoration effort that organizers expect to run through the autumn.</p>
<p>The plantings replace invasive blackberry that crews removed over the summer, and the species mix was chosen to stabilize the bank while shading the water for fish.</p>
<p>A second planting day is scheduled for next month, and the conservation district is lending tools to anyone who signs up in advance.</p>
</div></body></html>`

	result, err := Enhanced(page, nil)
	require.NoError(t, err)

	assert.Equal(t, "div", result.RootSelector, "unnamed blocks fall back to the element name")
	assert.Equal(t, 3, result.Paragraphs)
	assert.Contains(t, result.Content, "native seedlings")
}

func TestFromSelectorUsesChosenRoot(t *testing.T) {
	result, err := FromSelector(classedPage, "div.post-content")
	require.NoError(t, err)

	assert.Equal(t, "div.post-content", result.RootSelector)
	assert.Equal(t, 4, result.Paragraphs)
	assert.Contains(t, result.Content, "dredging report")
	assert.NotContains(t, result.Content, "sourdough competition")
}

func TestFromSelectorMisses(t *testing.T) {
	_, err := FromSelector(classedPage, "div.no-such-block")
	assert.ErrorIs(t, err, ErrNoContent, "a selector matching nothing has no content")

	_, err = FromSelector(classedPage, "div.related-content")
	assert.ErrorIs(t, err, ErrNoContent, "a link rail fails the density bar even when hand-picked")
}

func TestApplyOverrides(t *testing.T) {
	page := `<html><head><title>Generic Title</title></head><body>
<h1 class="headline">Override Headline</h1>
<span class="byline">Pat Jones</span>
<time class="published" datetime="2024-05-20T10:00:00Z">May 20</time>
</body></html>`

	meta := PageMeta(page, nil)
	meta = ApplyOverrides(page, meta, Overrides{
		Title:  "h1.headline",
		Author: "span.byline",
		Date:   "time.published",
	})

	assert.Equal(t, "Override Headline", meta.Title)
	assert.Equal(t, "Pat Jones", meta.Author)
	require.NotNil(t, meta.Published)
	assert.Equal(t, 20, meta.Published.Day())
}

func TestApplyOverridesKeepsGenericOnMiss(t *testing.T) {
	page := `<html><head><title>Generic Title</title></head><body><p>text</p></body></html>`

	meta := ApplyOverrides(page, PageMeta(page, nil), Overrides{Title: "h1.absent"})
	assert.Equal(t, "Generic Title", meta.Title, "a missing override selector keeps the generic value")
}

func TestApplyOverridesDateLayout(t *testing.T) {
	page := `<html><body><div class="when">20 May 2024</div></body></html>`

	meta := ApplyOverrides(page, Meta{}, Overrides{Date: "div.when", DateLayout: "2 January 2006"})
	require.NotNil(t, meta.Published)
	assert.Equal(t, 2024, meta.Published.Year())
	assert.Equal(t, 20, meta.Published.Day())

	meta = ApplyOverrides(page, Meta{}, Overrides{Date: "div.when", DateLayout: "2006-01-02"})
	assert.Nil(t, meta.Published, "text that does not match the layout yields no date")
}

func TestPageMetaFull(t *testing.T) {
	page := `<html><head>
<title>Budget Passes After Marathon Session</title>
<meta property="og:title" content="Budget Passes">
<meta property="og:description" content="The county budget passed after a session that ran past midnight, with amendments restoring library hours.">
<meta property="og:image" content="/img/budget-lead.jpg">
<meta name="author" content="By Jane Doe">
<meta property="article:published_time" content="2024-03-15T08:30:00Z">
<meta property="article:section" content="Politics">
</head><body><h1>Budget Passes After Marathon Session</h1></body></html>`

	pageURL, _ := url.Parse("https://example.com/politics/budget-passes-031524")
	meta := PageMeta(page, pageURL)

	assert.Equal(t, "Budget Passes After Marathon Session", meta.Title, "title tag wins over og:title")
	assert.Contains(t, meta.Description, "restoring library hours")
	assert.Equal(t, "https://example.com/img/budget-lead.jpg", meta.Image, "relative og:image resolves against the page URL")
	assert.Equal(t, "Jane Doe", meta.Author)
	assert.Equal(t, "Politics", meta.Category)
	require.NotNil(t, meta.Published)
	assert.Equal(t, 2024, meta.Published.Year())
	assert.Equal(t, 15, meta.Published.Day())
}

func TestPageMetaTitleFallbacks(t *testing.T) {
	ogOnly := `<html><head><meta property="og:title" content="From The Graph"></head><body></body></html>`
	assert.Equal(t, "From The Graph", PageMeta(ogOnly, nil).Title)

	h1Only := `<html><body><h1>Heading Only</h1></body></html>`
	assert.Equal(t, "Heading Only", PageMeta(h1Only, nil).Title)

	assert.Empty(t, PageMeta("<html><body><p>no title anywhere</p></body></html>", nil).Title)
}

func TestPageMetaImageFromContent(t *testing.T) {
	page := `<html><body><article><img src="/photos/scene.jpg" alt=""><p>text</p></article></body></html>`
	pageURL, _ := url.Parse("https://example.com/news/story")

	assert.Equal(t, "https://example.com/photos/scene.jpg", PageMeta(page, pageURL).Image)

	dataURI := `<html><body><img src="data:image/gif;base64,R0lGOD"><img src="https://cdn.example.com/real.jpg"></body></html>`
	assert.Equal(t, "https://cdn.example.com/real.jpg", PageMeta(dataURI, nil).Image, "data URIs are placeholders, not lead images")
}

func TestPagePublishedFromTimeTag(t *testing.T) {
	page := `<html><body><time datetime="2024-01-02T10:00:00Z">January 2</time></body></html>`
	meta := PageMeta(page, nil)

	require.NotNil(t, meta.Published)
	assert.Equal(t, 2024, meta.Published.Year())
	assert.Equal(t, 2, meta.Published.Day())
}

func TestPagePublishedFromJSONLD(t *testing.T) {
	flat := `<html><head><script type="application/ld+json">{"@type":"NewsArticle","datePublished":"2023-11-05T12:00:00Z"}</script></head><body></body></html>`
	meta := PageMeta(flat, nil)
	require.NotNil(t, meta.Published)
	assert.Equal(t, 2023, meta.Published.Year())

	graph := `<html><head><script type="application/ld+json">{"@graph":[{"@type":"WebSite"},{"@type":"NewsArticle","datePublished":"2022-07-09T06:00:00Z"}]}</script></head><body></body></html>`
	meta = PageMeta(graph, nil)
	require.NotNil(t, meta.Published)
	assert.Equal(t, 2022, meta.Published.Year())
}

func TestCleanAuthor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"By Jane Doe", "Jane Doe"},
		{"by jane doe", "jane doe"},
		{"Jane Doe and John Smith", "Jane Doe, John Smith"},
		{"Jane Doe, John Smith, Ann Li", "Jane Doe, John Smith, Ann Li"},
		{"Jane Doe & John Smith", "Jane Doe, John Smith"},
		{"  Staff   Writer  ", "Staff Writer"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanAuthor(tc.in), "input: %q", tc.in)
	}
}

func TestPageCategoryFromPath(t *testing.T) {
	page := "<html><body></body></html>"

	u, _ := url.Parse("https://example.com/politics/budget-story-202403")
	assert.Equal(t, "politics", PageMeta(page, u).Category)

	u, _ = url.Parse("https://example.com/news/latest-thing")
	assert.Empty(t, PageMeta(page, u).Category, "generic segments are not categories")

	u, _ = url.Parse("https://example.com/standalone")
	assert.Empty(t, PageMeta(page, u).Category)
}

func TestDetectLanguage(t *testing.T) {
	english := "The committee spent most of the afternoon reviewing the proposed changes to the zoning code, hearing from residents on both sides before voting to continue the discussion at the next scheduled session."
	assert.Equal(t, "eng", DetectLanguage(english))
	assert.Empty(t, DetectLanguage("   "))
}
