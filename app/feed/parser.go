package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
)

const probeFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>probe</title>
<item><title>probe</title><link>https://probe.invalid/item</link><guid>probe-1</guid>
<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate></item>
</channel></rss>`

// NewParser returns the parser for mode. In auto mode the structured parser is probed once
// and the XML fallback is used when the probe fails.
func NewParser(mode Mode) (Parser, error) {
	switch mode {
	case ModeStructured:
		return NewStructuredParser(), nil
	case ModeXML:
		return NewXMLParser(), nil
	case ModeAuto, "":
		structured := NewStructuredParser()
		if err := probe(structured); err != nil {
			slog.Warn("Structured feed parser unavailable, using XML fallback", "error", err)
			return NewXMLParser(), nil
		}
		return structured, nil
	default:
		return nil, fmt.Errorf("unknown feed parser mode %q", mode)
	}
}

func probe(p Parser) error {
	entries, err := p.Run([]byte(probeFeed))
	if err != nil {
		return err
	}
	if len(entries) != 1 || entries[0].Link == "" || entries[0].PublishedAt == nil {
		return fmt.Errorf("probe feed parsed into %d entries", len(entries))
	}
	return nil
}

// StructuredParser handles RSS, Atom and JSON feeds through gofeed
type StructuredParser struct {
	gofeedParser *gofeed.Parser
}

func NewStructuredParser() *StructuredParser {
	return &StructuredParser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *StructuredParser) Name() string {
	return string(ModeStructured)
}

func (p *StructuredParser) Run(data []byte) ([]Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}
	return entries, nil
}

func (p *StructuredParser) normalizeItem(item *gofeed.Item) Entry {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		for _, l := range item.Links {
			if l = strings.TrimSpace(l); l != "" {
				link = l
				break
			}
		}
	}

	parsed := item.PublishedParsed
	if parsed == nil {
		parsed = item.UpdatedParsed
	}
	raw := strings.TrimSpace(cmp.Or(item.Published, item.Updated))

	published, publishedAt := normalizeDate(raw, parsed)

	return Entry{
		GUID:        strings.TrimSpace(item.GUID),
		Link:        link,
		Title:       strings.TrimSpace(item.Title),
		Published:   published,
		PublishedAt: publishedAt,
	}
}
