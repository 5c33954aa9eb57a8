package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/starford/protasker/internal/deadline"
)

// Deadline is an optional due instant. The zero value means "no deadline".
//
// On disk a missing deadline has appeared as null, false, true, "" or an
// absent key; all of them decode to the zero value, and the zero value always
// encodes as null. A non-empty string is kept verbatim even when it does not
// parse, so readers can decide to skip it.
type Deadline struct {
	raw string
}

// DeadlineAt returns a deadline at t in canonical form.
func DeadlineAt(t time.Time) Deadline {
	return Deadline{raw: deadline.Format(t)}
}

// ParseDeadline validates and canonicalizes s. Blank input yields no deadline.
func ParseDeadline(s string) (Deadline, error) {
	if strings.TrimSpace(s) == "" {
		return Deadline{}, nil
	}
	norm, err := deadline.Normalize(s)
	if err != nil {
		return Deadline{}, err
	}
	return Deadline{raw: norm}, nil
}

// IsSet reports whether a deadline value is present.
func (d Deadline) IsSet() bool { return d.raw != "" }

// String returns the persisted form, or "" when unset.
func (d Deadline) String() string { return d.raw }

// Time returns the parsed instant. ok is false when unset or unparsable.
func (d Deadline) Time() (t time.Time, ok bool) {
	if d.raw == "" {
		return time.Time{}, false
	}
	t, err := deadline.Parse(d.raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarshalJSON implements json.Marshaler.
func (d Deadline) MarshalJSON() ([]byte, error) {
	if d.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Deadline) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	d.raw = ""
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d.raw = strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		ms, err := strconv.ParseFloat(string(data), 64)
		if err == nil && ms > 0 {
			d.raw = deadline.Format(time.UnixMilli(int64(ms)))
		}
	}
	return nil
}
