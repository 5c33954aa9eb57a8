// Package query implements free-text search and type/category filtering over
// the annotation store. Results keep their provenance so callers can address
// the source record again.
package query

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/category"
	"github.com/starford/protasker/internal/models"
)

// Source is the read side of the store.
type Source interface {
	View(fn func(r *models.Root))
	Registry() category.Registry
}

// CollectionAll selects every collection in Filter.
const CollectionAll = "all"

// Search returns every annotation with a string field containing q,
// compared case-insensitively. Collections are scanned files, directories,
// lines; anchors in insertion order; categories in priority order.
func Search(src Source, q string) []models.Located {
	fold := cases.Fold()
	needle := fold.String(q)
	match := func(a models.Annotation) bool {
		for _, s := range a.Strings() {
			if strings.Contains(fold.String(s), needle) {
				return true
			}
		}
		return false
	}

	var out []models.Located
	reg := src.Registry()
	src.View(func(r *models.Root) {
		for _, coll := range []models.Collection{models.Files, models.Directories} {
			out = appendAnchors(out, r, coll, reg, nil, match)
		}
		out = appendLines(out, r, match)
	})
	return out
}

// Filter returns annotations whose type matches typ within collection coll.
// typ is one of all, notes, comments, checklists, events, line or a
// configured custom type; coll is one of all, files, directories, lines.
func Filter(src Source, typ, coll string) ([]models.Located, error) {
	reg := src.Registry()
	want, all, err := reg.FilterType(typ)
	if err != nil {
		return nil, err
	}
	colls, err := collections(coll)
	if err != nil {
		return nil, err
	}
	match := func(a models.Annotation) bool { return all || a.Type == want }

	var out []models.Located
	known := reg.Categories()
	src.View(func(r *models.Root) {
		for _, c := range colls {
			if c == models.Lines {
				out = appendLines(out, r, match)
				continue
			}
			out = appendAnchors(out, r, c, reg, known, match)
		}
	})
	return out, nil
}

func collections(name string) ([]models.Collection, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == CollectionAll {
		return models.Collections, nil
	}
	c, err := models.ParseCollection(n)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return []models.Collection{c}, nil
}

// appendAnchors scans one anchor collection. With only non-nil, categories
// outside it are skipped.
func appendAnchors(out []models.Located, r *models.Root, coll models.Collection, reg category.Registry, only []string, match func(models.Annotation) bool) []models.Located {
	allowed := map[string]bool(nil)
	if only != nil {
		allowed = make(map[string]bool, len(only))
		for _, c := range only {
			allowed[c] = true
		}
	}
	for p := r.AnchorsOf(coll).Oldest(); p != nil; p = p.Next() {
		for _, cat := range p.Value.Categories(reg.Categories()) {
			if allowed != nil && !allowed[cat] {
				continue
			}
			for _, a := range p.Value[cat] {
				if match(a) {
					out = append(out, models.Located{Collection: coll, Path: p.Key, Category: cat, Annotation: a.Clone()})
				}
			}
		}
	}
	return out
}

func appendLines(out []models.Located, r *models.Root, match func(models.Annotation) bool) []models.Located {
	for p := r.Lines.Oldest(); p != nil; p = p.Next() {
		for _, la := range p.Value {
			if match(la.Annotation) {
				out = append(out, models.Located{Collection: models.Lines, Path: p.Key, Line: la.Line, Annotation: la.Annotation.Clone()})
			}
		}
	}
	return out
}

// ValidateQuery rejects a blank search string.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("query: empty search: %w", apperr.ErrInvalidInput)
	}
	return q, nil
}

// ResultSet is the id membership view of a result list, used to restrict a
// projection without re-running the query.
type ResultSet struct {
	ids     map[int64]struct{}
	anchors map[models.Collection]map[string]struct{}
}

// NewResultSet indexes results by id and anchor.
func NewResultSet(results []models.Located) *ResultSet {
	rs := &ResultSet{
		ids:     make(map[int64]struct{}, len(results)),
		anchors: make(map[models.Collection]map[string]struct{}),
	}
	for _, l := range results {
		rs.ids[l.Annotation.ID] = struct{}{}
		m := rs.anchors[l.Collection]
		if m == nil {
			m = make(map[string]struct{})
			rs.anchors[l.Collection] = m
		}
		m[l.Path] = struct{}{}
	}
	return rs
}

// HasID reports whether id is in the set. A nil set contains everything.
func (rs *ResultSet) HasID(id int64) bool {
	if rs == nil {
		return true
	}
	_, ok := rs.ids[id]
	return ok
}

// HasAnchor reports whether any result lives on the anchor. A nil set
// contains everything.
func (rs *ResultSet) HasAnchor(coll models.Collection, key string) bool {
	if rs == nil {
		return true
	}
	_, ok := rs.anchors[coll][key]
	return ok
}

// Len returns the number of distinct ids.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.ids)
}
