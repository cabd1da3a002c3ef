package extract

// Document is the readable part of an HTML page
type Document struct {
	Title  string
	Author string
	Text   string
}

// HTMLParser extracts the main article text from a page
type HTMLParser interface {
	Name() string
	Run(data []byte, pageURL string) (*Document, error)
}

type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeStructured Mode = "structured"
	ModeRegex      Mode = "regex"
)
