package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b.*?</style\s*>`)
	titleTag    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title\s*>`)
)

// RegexFallbackParser is the degraded mode used when markup parsing is unavailable:
// script and style blocks are cut out, every remaining tag is stripped and entities unescaped
type RegexFallbackParser struct {
	policy *bluemonday.Policy
}

func NewRegexFallbackParser() *RegexFallbackParser {
	return &RegexFallbackParser{
		policy: bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true),
	}
}

func (p *RegexFallbackParser) Name() string {
	return string(ModeRegex)
}

func (p *RegexFallbackParser) Run(data []byte, _ string) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}
	page := string(data)

	doc := &Document{}
	if m := titleTag.FindStringSubmatch(page); m != nil {
		doc.Title = strings.TrimSpace(html.UnescapeString(m[1]))
	}

	page = titleTag.ReplaceAllString(page, " ")
	page = scriptBlock.ReplaceAllString(page, " ")
	page = styleBlock.ReplaceAllString(page, " ")
	doc.Text = html.UnescapeString(p.policy.Sanitize(page))

	return doc, nil
}
