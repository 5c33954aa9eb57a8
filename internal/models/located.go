package models

import "sort"

// Located is an annotation together with where it lives in the document, so
// callers can address it again for edit or delete.
type Located struct {
	Collection Collection `json:"collection"`
	Path       string     `json:"path"`
	Category   string     `json:"category,omitempty"`
	Line       int        `json:"line,omitempty"`
	Annotation Annotation `json:"annotation"`
}

// Categories returns the categories present on a, known ones first in the
// given priority order, then any others alphabetically.
func (a Anchor) Categories(known []string) []string {
	out := make([]string, 0, len(a))
	seen := make(map[string]struct{}, len(known))
	for _, c := range known {
		seen[c] = struct{}{}
		if _, ok := a[c]; ok {
			out = append(out, c)
		}
	}
	var rest []string
	for c := range a {
		if _, ok := seen[c]; !ok {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
