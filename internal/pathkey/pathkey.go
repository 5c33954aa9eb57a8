// Package pathkey canonicalizes filesystem paths into the keys used by the annotation store.
package pathkey

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize returns the anchor key for raw: backslashes become forward slashes,
// redundant separators and dot segments are collapsed, and the result is
// lower-cased. Blank input is lower-cased and otherwise returned unchanged.
//
// Normalize is idempotent.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return lower(raw)
	}
	p := strings.ReplaceAll(raw, `\`, "/")
	p = path.Clean(p)
	return lower(p)
}

// Equal reports whether a and b name the same anchor.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Base returns the last element of a normalized key, used as a display label.
func Base(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(key)
}

// Dir returns the parent directory key of a normalized file key.
func Dir(key string) string {
	return path.Dir(key)
}

// A Caser is stateful, so one is built per call instead of shared.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
