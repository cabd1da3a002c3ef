package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// XMLParser walks RSS and Atom documents with encoding/xml. RSS channel/item (and RSS 1.0
// items) are tried first, Atom entries second.
type XMLParser struct{}

func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

func (p *XMLParser) Name() string {
	return string(ModeXML)
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Items []rssItem `xml:"item"` // RSS 1.0 (RDF) keeps items beside the channel
}

type rssItem struct {
	GUID    string `xml:"guid"`
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Date    string `xml:"date"` // dc:date
}

type atomDocument struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (p *XMLParser) Run(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("failed to parse feed: empty document")
	}

	var rss rssDocument
	rssErr := xml.Unmarshal(data, &rss)
	if rssErr == nil {
		items := append(rss.Channel.Items, rss.Items...)
		if len(items) > 0 {
			return p.rssEntries(items), nil
		}
	}

	var atom atomDocument
	atomErr := xml.Unmarshal(data, &atom)
	if atomErr == nil {
		return p.atomEntries(atom.Entries), nil
	}

	if rssErr != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", rssErr)
	}
	return nil, fmt.Errorf("failed to parse feed: %w", atomErr)
}

func (p *XMLParser) rssEntries(items []rssItem) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		raw := strings.TrimSpace(item.PubDate)
		if raw == "" {
			raw = strings.TrimSpace(item.Date)
		}
		published, publishedAt := normalizeDate(raw, nil)

		entries = append(entries, Entry{
			GUID:        strings.TrimSpace(item.GUID),
			Link:        strings.TrimSpace(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Published:   published,
			PublishedAt: publishedAt,
		})
	}
	return entries
}

func (p *XMLParser) atomEntries(items []atomEntry) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, entry := range items {
		raw := strings.TrimSpace(entry.Published)
		if raw == "" {
			raw = strings.TrimSpace(entry.Updated)
		}
		published, publishedAt := normalizeDate(raw, nil)

		entries = append(entries, Entry{
			GUID:        strings.TrimSpace(entry.ID),
			Link:        atomEntryLink(entry.Links),
			Title:       strings.TrimSpace(entry.Title),
			Published:   published,
			PublishedAt: publishedAt,
		})
	}
	return entries
}

// atomEntryLink prefers rel="alternate" (or no rel) over other relations
func atomEntryLink(links []atomLink) string {
	var fallback string
	for _, l := range links {
		href := strings.TrimSpace(l.Href)
		if href == "" {
			continue
		}
		if l.Rel == "" || l.Rel == "alternate" {
			return href
		}
		if fallback == "" {
			fallback = href
		}
	}
	return fallback
}
