package content

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

func foldPunctuation(r rune) rune {
	switch r {
	case '‘', '’':
		return '\''
	case '“', '”':
		return '"'
	case '–', '—', '•':
		return '-'
	}
	return r
}

// Normalize canonicalizes punctuation and whitespace so that the same story published with
// different typography yields the same text and therefore the same fingerprint
func Normalize(text string) string {
	t := transform.Chain(norm.NFC, runes.Map(foldPunctuation))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = strings.Map(foldPunctuation, text)
	}

	folded = strings.ReplaceAll(folded, "\r\n", "\n")
	folded = strings.ReplaceAll(folded, "\r", "\n")
	folded = horizontalSpace.ReplaceAllString(folded, " ")
	folded = blankLines.ReplaceAllString(folded, "\n\n")

	lines := strings.Split(folded, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
