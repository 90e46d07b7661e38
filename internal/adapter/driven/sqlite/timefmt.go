package sqlite

import (
	"fmt"
	"time"
)

// timeLayout is the layout used for every timestamp column written by this
// package. Fixed-width fractional seconds keep lexical and chronological
// ordering identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a timestamp column. Older rows written with
// CURRENT_TIMESTAMP use SQLite's default layout.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
