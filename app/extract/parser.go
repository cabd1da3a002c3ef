package extract

import (
	"fmt"
	"log/slog"
	"strings"
)

const probePage = `<html><head><title>probe</title></head>
<body><nav>menu</nav><article><p>probe body</p></article></body></html>`

// NewHTMLParser returns the parser for mode. In auto mode the structured parser is probed once
// and the regex fallback is used when the probe fails.
func NewHTMLParser(mode Mode) (HTMLParser, error) {
	switch mode {
	case ModeStructured:
		return NewStructuredParser(), nil
	case ModeRegex:
		return NewRegexFallbackParser(), nil
	case ModeAuto, "":
		structured := NewStructuredParser()
		if err := probe(structured); err != nil {
			slog.Warn("Structured HTML parser unavailable, using regex fallback", "error", err)
			return NewRegexFallbackParser(), nil
		}
		return structured, nil
	default:
		return nil, fmt.Errorf("unknown HTML parser mode %q", mode)
	}
}

func probe(p HTMLParser) error {
	doc, err := p.Run([]byte(probePage), "https://probe.invalid/")
	if err != nil {
		return err
	}
	if !strings.Contains(doc.Text, "probe body") || strings.Contains(doc.Text, "menu") {
		return fmt.Errorf("probe page extracted as %q", doc.Text)
	}
	return nil
}
