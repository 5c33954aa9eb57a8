// Package deadline parses user-supplied deadline strings into instants and
// formats them in the canonical persisted form.
package deadline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/protasker/internal/apperr"
)

// Layout is the canonical persisted form (UTC, millisecond precision).
const Layout = "2006-01-02T15:04:05.000Z07:00"

// zoned layouts carry an offset; local layouts are read in time.Local.
var (
	zoned = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
	}
	local = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02 15:04",
	}
	dateOnly = []string{
		"2006-01-02",
		"2006/01/02",
	}
)

// Parse reads s as an instant. Accepted forms are RFC 3339 timestamps,
// date-times without offset (local time), bare dates (midnight UTC) and
// integer Unix milliseconds. Failures wrap apperr.ErrInvalidInput.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("deadline: empty value: %w", apperr.ErrInvalidInput)
	}
	for _, l := range zoned {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	for _, l := range local {
		if t, err := time.ParseInLocation(l, s, time.Local); err == nil {
			return t, nil
		}
	}
	for _, l := range dateOnly {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("deadline: unrecognized date %q: %w", s, apperr.ErrInvalidInput)
}

// Format renders t in the canonical persisted form.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Normalize parses s and returns its canonical form.
func Normalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}
