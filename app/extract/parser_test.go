package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
	<title>Site Title</title>
	<style>body { color: red; }</style>
	<script>var tracking = "noise";</script>
</head>
<body>
	<header><h1>Site Header</h1></header>
	<nav>Navigation</nav>
	<article>
		<h1>Main Article Title</h1>
		<p>This is the main content of the article. It contains several sentences of meaningful text.</p>
		<p>This is another paragraph with more content &amp; detail.</p>
		<form>Subscribe now</form>
	</article>
	<footer><p>Copyright 2024</p></footer>
</body>
</html>`

const paragraphPage = `<html><head><title>Plain</title></head>
<body>
	<div class="story">
		<p>First   paragraph of the story.</p>
		<p>   </p>
		<p>Second <b>bold</b> paragraph.</p>
	</div>
	<footer><p>Footer text</p></footer>
</body></html>`

func TestStructuredParser_Article(t *testing.T) {
	doc, err := NewStructuredParser().Run([]byte(articlePage), "https://example.com/story")
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "Main Article Title")
	assert.Contains(t, doc.Text, "main content of the article")
	assert.Contains(t, doc.Text, "more content & detail")
	assert.NotContains(t, doc.Text, "Navigation")
	assert.NotContains(t, doc.Text, "Site Header")
	assert.NotContains(t, doc.Text, "Subscribe now")
	assert.NotContains(t, doc.Text, "Copyright")
	assert.NotContains(t, doc.Text, "tracking")
	assert.NotEmpty(t, doc.Title)
}

func TestStructuredParser_Paragraphs(t *testing.T) {
	doc, err := NewStructuredParser().Run([]byte(paragraphPage), "https://example.com/plain")
	require.NoError(t, err)

	assert.Equal(t, "First paragraph of the story.\n\nSecond bold paragraph.", strings.ReplaceAll(doc.Text, "   ", " "))
	assert.NotContains(t, doc.Text, "Footer text")
}

func TestStructuredParser_NoText(t *testing.T) {
	doc, err := NewStructuredParser().Run([]byte(`<html><body><div></div></body></html>`), "")
	require.NoError(t, err)
	assert.Empty(t, doc.Text)

	_, err = NewStructuredParser().Run(nil, "")
	assert.Error(t, err)
}

func TestRegexFallbackParser(t *testing.T) {
	doc, err := NewRegexFallbackParser().Run([]byte(articlePage), "")
	require.NoError(t, err)

	assert.Equal(t, "Site Title", doc.Title)
	assert.Contains(t, doc.Text, "main content of the article")
	assert.Contains(t, doc.Text, "more content & detail")
	assert.NotContains(t, doc.Text, "tracking")
	assert.NotContains(t, doc.Text, "color: red")
	assert.NotContains(t, doc.Text, "<p>")
	// Degraded mode keeps boilerplate text.
	assert.Contains(t, doc.Text, "Navigation")
}

func TestRegexFallbackParser_TagBoundariesBecomeSpaces(t *testing.T) {
	doc, err := NewRegexFallbackParser().Run([]byte(`<p>one</p><p>two</p>`), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, strings.Fields(doc.Text))
}

func TestNewHTMLParser(t *testing.T) {
	p, err := NewHTMLParser(ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "structured", p.Name())

	p, err = NewHTMLParser(ModeRegex)
	require.NoError(t, err)
	assert.Equal(t, "regex", p.Name())

	_, err = NewHTMLParser("bogus")
	assert.Error(t, err)
}
