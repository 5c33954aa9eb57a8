// Package category is the registry of annotation categories: the four built-in
// kinds plus the user-configured custom types. Every place that iterates
// categories goes through a Registry so custom types are never forgotten.
package category

import (
	"fmt"
	"strings"

	"github.com/starford/protasker/internal/apperr"
)

// Built-in annotation types (singular, as stored in Annotation.Type).
const (
	TypeNote      = "note"
	TypeComment   = "comment"
	TypeChecklist = "checklist"
	TypeEvent     = "event"
	TypeLine      = "line"
)

// Built-in categories (plural bucket names under a file or directory anchor).
const (
	Notes      = "notes"
	Comments   = "comments"
	Checklists = "checklists"
	Events     = "events"
)

// FilterAll selects every type in Registry.FilterType.
const FilterAll = "all"

var builtins = []string{TypeNote, TypeComment, TypeChecklist, TypeEvent}

// filterTypes maps the filter vocabulary to stored singular types.
var filterTypes = map[string]string{
	"note":       TypeNote,
	"comment":    TypeComment,
	"checklist":  TypeChecklist,
	"event":      TypeEvent,
	"notes":      TypeNote,
	"comments":   TypeComment,
	"checklists": TypeChecklist,
	"events":     TypeEvent,
	"line":       TypeLine,
	"lines":      TypeLine,
}

// Plural returns the category name for a singular type.
func Plural(typ string) string {
	return strings.ToLower(typ) + "s"
}

// Registry resolves types and categories. The zero value knows only built-ins.
type Registry struct {
	custom []string
}

// NewRegistry builds a registry from configured custom type names. Names are
// trimmed and lower-cased; blanks, duplicates and built-in names are dropped.
func NewRegistry(customTypes []string) Registry {
	seen := make(map[string]struct{}, len(customTypes))
	for _, b := range builtins {
		seen[b] = struct{}{}
	}
	seen[TypeLine] = struct{}{}

	var custom []string
	for _, raw := range customTypes {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		custom = append(custom, t)
	}
	return Registry{custom: custom}
}

// Custom returns the normalized custom type names.
func (r Registry) Custom() []string {
	out := make([]string, len(r.custom))
	copy(out, r.custom)
	return out
}

// Categories returns every known category in priority order:
// notes, comments, checklists, events, then custom types.
func (r Registry) Categories() []string {
	out := make([]string, 0, len(builtins)+len(r.custom))
	for _, t := range builtins {
		out = append(out, Plural(t))
	}
	for _, t := range r.custom {
		out = append(out, Plural(t))
	}
	return out
}

// Known reports whether category is a registered category name.
func (r Registry) Known(category string) bool {
	for _, c := range r.Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// Priority returns the sort rank of a category. Unknown categories rank last.
func (r Registry) Priority(category string) int {
	cats := r.Categories()
	for i, c := range cats {
		if c == category {
			return i
		}
	}
	return len(cats)
}

// IsType reports whether typ is a built-in or custom annotation type usable on
// a file or directory anchor.
func (r Registry) IsType(typ string) bool {
	typ = strings.ToLower(typ)
	for _, t := range builtins {
		if t == typ {
			return true
		}
	}
	for _, t := range r.custom {
		if t == typ {
			return true
		}
	}
	return false
}

// CategoryFor returns the category that stores annotations of typ.
func (r Registry) CategoryFor(typ string) (string, error) {
	if !r.IsType(typ) {
		return "", fmt.Errorf("category: unknown annotation type %q: %w", typ, apperr.ErrInvalidInput)
	}
	return Plural(typ), nil
}

// IsLineType reports whether typ may be stored on a line annotation: "line",
// any built-in or any custom type.
func (r Registry) IsLineType(typ string) bool {
	return strings.ToLower(typ) == TypeLine || r.IsType(typ)
}

// FilterType maps a filter name (all, line, or a built-in or custom type in
// singular or plural form) to the stored type.
// all is true for "all".
func (r Registry) FilterType(name string) (typ string, all bool, err error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == FilterAll {
		return "", true, nil
	}
	if t, ok := filterTypes[n]; ok {
		return t, false, nil
	}
	for _, t := range r.custom {
		if n == t || n == Plural(t) {
			return t, false, nil
		}
	}
	return "", false, fmt.Errorf("category: unknown filter type %q: %w", name, apperr.ErrInvalidInput)
}
