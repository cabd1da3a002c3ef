package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const boilerplateSelector = "script, style, nav, footer, header, noscript, form"

// StructuredParser reads the body from <article>, or from the page's paragraphs when there
// is no article element. Readability supplies title and byline.
type StructuredParser struct{}

func NewStructuredParser() *StructuredParser {
	return &StructuredParser{}
}

func (p *StructuredParser) Name() string {
	return string(ModeStructured)
}

func (p *StructuredParser) Run(data []byte, pageURL string) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &Document{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	p.applyReadability(data, pageURL, result)

	doc.Find(boilerplateSelector).Remove()

	if article := doc.Find("article").First(); article.Length() > 0 {
		result.Text = joinText(article.Nodes, "\n", false)
		return result, nil
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := joinText(s.Nodes, " ", true); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	result.Text = strings.Join(paragraphs, "\n\n")

	return result, nil
}

func (p *StructuredParser) applyReadability(data []byte, pageURL string, doc *Document) {
	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return
	}
	if title := strings.TrimSpace(article.Title); title != "" {
		doc.Title = title
	}
	doc.Author = strings.TrimSpace(article.Byline)
}

// joinText concatenates the text nodes below nodes with sep, optionally trimming each
// fragment and dropping empty ones
func joinText(nodes []*html.Node, sep string, strip bool) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := n.Data
			if strip {
				text = strings.TrimSpace(text)
			}
			if text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}
