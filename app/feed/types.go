package feed

import (
	"time"
)

// Entry is one feed item reduced to the fields ingestion needs
type Entry struct {
	GUID  string
	Link  string
	Title string
	// Published is UTC RFC3339 when the feed date could be parsed, otherwise the raw value
	Published   string
	PublishedAt *time.Time
}

// Parser turns raw feed bytes into entries
type Parser interface {
	Name() string
	Run(data []byte) ([]Entry, error)
}

type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeStructured Mode = "structured"
	ModeXML        Mode = "xml"
)
