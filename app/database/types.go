package database

import (
	"database/sql"
	"time"
)

// TimeLayout is fixed-width so that lexical order in SQLite equals chronological order
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustTime(s string) time.Time {
	t, _ := ParseTime(s)
	return t
}
