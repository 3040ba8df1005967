package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New("https://example.com")
	require.NoError(t, err)
	return c
}

// TestNew verifies classifier construction and seed validation
func TestNew(t *testing.T) {
	c, err := New("https://www.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "example.com", c.BaseHost(), "www prefix should be stripped")

	_, err = New("ftp://example.com")
	assert.Error(t, err, "non-http scheme should be rejected")

	_, err = New("://bad url")
	assert.Error(t, err)
}

// TestClassifyExternal verifies off-site and unusable URLs are external with
// both flags false
func TestClassifyExternal(t *testing.T) {
	c := newTestClassifier(t)

	urls := []string{
		"https://other.com/news/story-123456",
		"https://facebook.com/example",
		"https://twitter.com/example/status/1",
		"https://m.youtube.com/watch?v=abc",
		"mailto:tips@example.com",
		"ftp://example.com/file",
		"https://example.org/news/story",
	}
	for _, u := range urls {
		cls := c.Classify(u)
		assert.Equal(t, TypeExternal, cls.Type, "url %s", u)
		assert.False(t, cls.ShouldCrawl, "url %s should not be crawled", u)
		assert.False(t, cls.ShouldExtract, "url %s should not be extracted", u)
	}
}

// TestClassifyHomepage verifies homepage detection
func TestClassifyHomepage(t *testing.T) {
	c := newTestClassifier(t)

	for _, u := range []string{
		"https://example.com",
		"https://example.com/",
		"https://www.example.com/",
		"https://example.com/home",
	} {
		cls := c.Classify(u)
		assert.Equal(t, TypeHomepage, cls.Type, "url %s", u)
		assert.True(t, cls.ShouldCrawl, "homepage should be crawled")
		assert.False(t, cls.ShouldExtract, "homepage should not be extracted")
		assert.Equal(t, 1, cls.Priority)
	}
}

// TestClassifyListing verifies listing pages are crawl-only
func TestClassifyListing(t *testing.T) {
	c := newTestClassifier(t)

	for _, u := range []string{
		"https://example.com/latest",
		"https://example.com/news",
		"https://example.com/news/page/2",
		"https://example.com/page/17",
		"https://example.com/politics",
	} {
		cls := c.Classify(u)
		assert.Equal(t, TypeListing, cls.Type, "url %s", u)
		assert.True(t, cls.ShouldCrawl, "url %s", u)
		assert.False(t, cls.ShouldExtract, "url %s", u)
	}
}

// TestClassifyPaginationNeverExtracted verifies /page/N wins over any other
// path content
func TestClassifyPaginationNeverExtracted(t *testing.T) {
	c := newTestClassifier(t)

	for _, u := range []string{
		"https://example.com/page/3",
		"https://example.com/news/page/3",
		"https://example.com/category/tech/page/12",
		"https://example.com/politics/long-story-slug/page/2",
	} {
		cls := c.Classify(u)
		assert.False(t, cls.ShouldExtract, "url %s must never be extracted", u)
	}
}

// TestClassifyCategory verifies category paths are crawl-only
func TestClassifyCategory(t *testing.T) {
	c := newTestClassifier(t)

	cls := c.Classify("https://example.com/category/markets")
	assert.Equal(t, TypeCategory, cls.Type)
	assert.True(t, cls.ShouldCrawl)
	assert.False(t, cls.ShouldExtract)
}

// TestClassifyUtility verifies utility pages are neither crawled nor
// extracted
func TestClassifyUtility(t *testing.T) {
	c := newTestClassifier(t)

	for _, u := range []string{
		"https://example.com/search",
		"https://example.com/login",
		"https://example.com/privacy",
		"https://example.com/cart",
		"https://example.com/tools/unicode",
		"https://example.com/photos/2024",
	} {
		cls := c.Classify(u)
		assert.Equal(t, TypeUtility, cls.Type, "url %s", u)
		assert.False(t, cls.ShouldCrawl, "url %s", u)
		assert.False(t, cls.ShouldExtract, "url %s", u)
	}
}

// TestClassifyArticlePaths verifies article path segment detection
func TestClassifyArticlePaths(t *testing.T) {
	c := newTestClassifier(t)

	for _, u := range []string{
		"https://example.com/news/local-mayor-resigns",
		"https://example.com/article/2024/some-headline",
		"https://example.com/story/another-headline",
		"https://example.com/politics/budget-vote-delayed",
		"https://sub.example.com/news/subdomain-story",
	} {
		cls := c.Classify(u)
		assert.Equal(t, TypeArticle, cls.Type, "url %s", u)
		assert.True(t, cls.ShouldExtract, "url %s", u)
		assert.Equal(t, 3, cls.Priority, "url %s", u)
	}
}

// TestClassifySlugWithNumericID verifies the slug-plus-id heuristic
func TestClassifySlugWithNumericID(t *testing.T) {
	c := newTestClassifier(t)

	cls := c.Classify("https://example.com/breaking-story-2094581")
	assert.Equal(t, TypeArticle, cls.Type)
	assert.True(t, cls.ShouldExtract)
	assert.Equal(t, 3, cls.Priority)

	// Too few digits in the id.
	cls = c.Classify("https://example.com/story-123")
	assert.NotEqual(t, 3, cls.Priority, "short ids should not match the id heuristic")
}

// TestClassifyOpaquePath verifies the low-confidence long-slug guess
func TestClassifyOpaquePath(t *testing.T) {
	c := newTestClassifier(t)

	cls := c.Classify("https://example.com/that-meeting-about-the-harbour-went-long")
	assert.Equal(t, TypeArticle, cls.Type)
	assert.True(t, cls.ShouldExtract)
	assert.Equal(t, 5, cls.Priority, "opaque paths are low confidence")

	cls = c.Classify("https://example.com/x")
	assert.Equal(t, TypeExternal, cls.Type, "short opaque paths stay unclassified")

	cls = c.Classify("https://example.com/assets/stylesheet-spring-refresh.css")
	assert.False(t, cls.ShouldExtract, "file extensions are never articles")
}

// TestClassifyStable verifies repeated classification yields identical,
// distinct results per URL kind
func TestClassifyStable(t *testing.T) {
	c := newTestClassifier(t)

	home := "https://example.com/"
	listing := "https://example.com/news"
	article := "https://example.com/breaking-story-2094581"

	first := map[string]Classification{
		home:    c.Classify(home),
		listing: c.Classify(listing),
		article: c.Classify(article),
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, first[home], c.Classify(home))
		assert.Equal(t, first[listing], c.Classify(listing))
		assert.Equal(t, first[article], c.Classify(article))
	}

	assert.NotEqual(t, first[home].Type, first[listing].Type)
	assert.NotEqual(t, first[listing].Type, first[article].Type)
}

// TestValidate verifies validation reasons
func TestValidate(t *testing.T) {
	c := newTestClassifier(t)

	v := c.Validate("https://example.com/news/story-slug")
	assert.True(t, v.Valid)
	assert.Equal(t, TypeArticle, v.Type)
	assert.Empty(t, v.Reason)

	v = c.Validate("https://other.com/news/story")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "outside base domain")

	v = c.Validate("https://facebook.com/example")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "social")

	v = c.Validate("ftp://example.com/x")
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reason, "scheme")
}

// TestIsArticleURL verifies the discovery-stage filter
func TestIsArticleURL(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.IsArticleURL("https://example.com/news/some-story"))
	assert.False(t, c.IsArticleURL("https://example.com/news"))
	assert.False(t, c.IsArticleURL("https://example.com/category/tech"))
	assert.False(t, c.IsArticleURL("https://other.com/news/story"))
}
