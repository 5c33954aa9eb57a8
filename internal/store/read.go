package store

import (
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/pathkey"
)

// LineAnnotations returns copies of the annotations on one line of path.
func (s *Store) LineAnnotations(path string, line int) []models.LineAnnotation {
	key := pathkey.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, _ := s.root.Lines.Get(key)
	var out []models.LineAnnotation
	for _, la := range list {
		if la.Line == line {
			out = append(out, la.Clone())
		}
	}
	return out
}

// LineHasAnnotations reports whether any annotation sits on line of path.
func (s *Store) LineHasAnnotations(path string, line int) bool {
	key := pathkey.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, _ := s.root.Lines.Get(key)
	for _, la := range list {
		if la.Line == line {
			return true
		}
	}
	return false
}

// Anchors lists the anchor keys of each collection in insertion order.
func (s *Store) Anchors() map[models.Collection][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[models.Collection][]string{
		models.Files:       {},
		models.Directories: {},
		models.Lines:       {},
	}
	for _, c := range []models.Collection{models.Files, models.Directories} {
		for p := s.root.AnchorsOf(c).Oldest(); p != nil; p = p.Next() {
			out[c] = append(out[c], p.Key)
		}
	}
	for p := s.root.Lines.Oldest(); p != nil; p = p.Next() {
		out[models.Lines] = append(out[models.Lines], p.Key)
	}
	return out
}

// Stats returns the anchor and annotation totals.
func (s *Store) Stats() (anchors, annotations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.Count()
}
