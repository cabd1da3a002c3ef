package feed

import (
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// normalizeDate returns the UTC RFC3339 form of a feed date plus the parsed time.
// Unparsable values are passed through untouched with a nil time.
func normalizeDate(raw string, parsed *time.Time) (string, *time.Time) {
	if parsed != nil {
		t := parsed.UTC()
		return t.Format(time.RFC3339), &t
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	t, ok := ParseDate(raw)
	if !ok {
		return raw, nil
	}
	return t.Format(time.RFC3339), &t
}

// ParseDate accepts RFC 2822 and ISO 8601 dates and common variants of both
func ParseDate(raw string) (time.Time, bool) {
	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
