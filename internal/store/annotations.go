package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/category"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/pathkey"
)

// Ref addresses annotations by collection and anchor. An empty Path matches
// every anchor of the collection; an empty Category matches every category.
// Category is ignored for lines.
type Ref struct {
	Collection models.Collection `json:"collection"`
	Path       string            `json:"path,omitempty"`
	Category   string            `json:"category,omitempty"`
}

func anchorKey(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("store: empty path: %w", apperr.ErrInvalidInput)
	}
	return pathkey.Normalize(raw), nil
}

// AddEntry appends a new annotation of typ to the file or directory anchor at
// path. For checklists content must carry the payload (or Text is used as its
// name); its id, creation time and deadline are filled in here.
func (s *Store) AddEntry(path string, isDir bool, typ string, content models.Content, dl models.Deadline) (models.Located, error) {
	key, err := anchorKey(path)
	if err != nil {
		return models.Located{}, err
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	cat, err := s.registry().CategoryFor(typ)
	if err != nil {
		return models.Located{}, err
	}
	coll := models.Files
	if isDir {
		coll = models.Directories
	}

	var loc models.Located
	err = s.mutate(func(r *models.Root) (Change, error) {
		a := models.Annotation{
			ID:        s.nextID(),
			Type:      typ,
			CreatedAt: s.now().UTC(),
			Deadline:  dl,
		}
		if typ == category.TypeChecklist {
			cl := content.Checklist.Clone()
			if cl == nil {
				cl = &models.Checklist{Name: content.Text}
			}
			if strings.TrimSpace(cl.Name) == "" {
				return Change{}, fmt.Errorf("store: checklist name is empty: %w", apperr.ErrInvalidInput)
			}
			cl.ID = a.ID
			cl.CreatedAt = a.CreatedAt
			cl.Deadline = dl
			if cl.Items == nil {
				cl.Items = []models.ChecklistItem{}
			}
			checklist.EnsureUIDs(cl)
			a.Content = models.ChecklistContent(cl)
		} else {
			if content.Checklist != nil {
				return Change{}, fmt.Errorf("store: %s annotations take text content: %w", typ, apperr.ErrInvalidInput)
			}
			a.Content = models.TextContent(content.Text)
		}

		anchors := r.AnchorsOf(coll)
		anchor, ok := anchors.Get(key)
		if !ok {
			anchor = models.Anchor{}
			anchors.Set(key, anchor)
		}
		anchor[cat] = append(anchor[cat], a)

		loc = models.Located{Collection: coll, Path: key, Category: cat, Annotation: a.Clone()}
		return Change{Op: OpAdd, Collection: coll, Path: key, ID: a.ID}, nil
	})
	return loc, err
}

// AddLineAnnotation appends a text annotation to a 1-based line of a file.
// An empty typ defaults to "line".
func (s *Store) AddLineAnnotation(path string, line int, typ, text string, dl models.Deadline) (models.Located, error) {
	key, err := anchorKey(path)
	if err != nil {
		return models.Located{}, err
	}
	if line < 1 {
		return models.Located{}, fmt.Errorf("store: line %d must be >= 1: %w", line, apperr.ErrInvalidInput)
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		typ = category.TypeLine
	}
	if typ == category.TypeChecklist || !s.registry().IsLineType(typ) {
		return models.Located{}, fmt.Errorf("store: type %q not allowed on a line: %w", typ, apperr.ErrInvalidInput)
	}

	var loc models.Located
	err = s.mutate(func(r *models.Root) (Change, error) {
		la := models.LineAnnotation{
			Annotation: models.Annotation{
				ID:        s.nextID(),
				Type:      typ,
				Content:   models.TextContent(text),
				CreatedAt: s.now().UTC(),
				Deadline:  dl,
			},
			Line: line,
		}
		list, _ := r.Lines.Get(key)
		r.Lines.Set(key, append(list, la))

		loc = models.Located{Collection: models.Lines, Path: key, Line: line, Annotation: la.Annotation.Clone()}
		return Change{Op: OpAdd, Collection: models.Lines, Path: key, ID: la.ID}, nil
	})
	return loc, err
}

// slot is the position of an annotation found by find.
type slot struct {
	coll  models.Collection
	key   string
	cat   string
	index int
	line  int
}

// find locates id under ref. Caller holds s.mu.
func (s *Store) find(r *models.Root, ref Ref, id int64) (*models.Annotation, slot, bool) {
	key := ""
	if strings.TrimSpace(ref.Path) != "" {
		key = pathkey.Normalize(ref.Path)
	}

	if ref.Collection == models.Lines {
		for p := r.Lines.Oldest(); p != nil; p = p.Next() {
			if key != "" && p.Key != key {
				continue
			}
			for i := range p.Value {
				if p.Value[i].ID == id {
					return &p.Value[i].Annotation, slot{coll: models.Lines, key: p.Key, index: i, line: p.Value[i].Line}, true
				}
			}
		}
		return nil, slot{}, false
	}

	anchors := r.AnchorsOf(ref.Collection)
	if anchors == nil {
		return nil, slot{}, false
	}
	reg := s.registry()
	want := categoryName(reg, ref.Category)
	for p := anchors.Oldest(); p != nil; p = p.Next() {
		if key != "" && p.Key != key {
			continue
		}
		for _, cat := range p.Value.Categories(reg.Categories()) {
			if want != "" && cat != want {
				continue
			}
			list := p.Value[cat]
			for i := range list {
				if list[i].ID == id {
					return &list[i], slot{coll: ref.Collection, key: p.Key, cat: cat, index: i}, true
				}
			}
		}
	}
	return nil, slot{}, false
}

// categoryName accepts a category or its singular type.
func categoryName(reg category.Registry, raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" || reg.Known(c) {
		return c
	}
	if reg.IsType(c) {
		return category.Plural(c)
	}
	return c
}

func locatedAt(a *models.Annotation, sl slot) models.Located {
	return models.Located{
		Collection: sl.coll,
		Path:       sl.key,
		Category:   sl.cat,
		Line:       sl.line,
		Annotation: a.Clone(),
	}
}

// Get returns the annotation id under ref.
func (s *Store) Get(ref Ref, id int64) (models.Located, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, sl, ok := s.find(s.root, ref, id)
	if !ok {
		return models.Located{}, fmt.Errorf("store: annotation %d: %w", id, apperr.ErrNotFound)
	}
	return locatedAt(a, sl), nil
}

// DeleteAnnotation removes id under ref and garbage-collects an anchor left
// empty. Deleting an absent id is a no-op that reports false.
func (s *Store) DeleteAnnotation(ref Ref, id int64) (bool, error) {
	deleted := false
	err := s.mutate(func(r *models.Root) (Change, error) {
		_, sl, ok := s.find(r, ref, id)
		if !ok {
			return Change{}, errNoop
		}
		if sl.coll == models.Lines {
			list, _ := r.Lines.Get(sl.key)
			list = append(list[:sl.index], list[sl.index+1:]...)
			if len(list) == 0 {
				r.Lines.Delete(sl.key)
			} else {
				r.Lines.Set(sl.key, list)
			}
		} else {
			anchors := r.AnchorsOf(sl.coll)
			anchor, _ := anchors.Get(sl.key)
			list := append(anchor[sl.cat][:sl.index], anchor[sl.cat][sl.index+1:]...)
			if len(list) == 0 {
				delete(anchor, sl.cat)
			} else {
				anchor[sl.cat] = list
			}
			if len(anchor) == 0 {
				anchors.Delete(sl.key)
			}
		}
		deleted = true
		return Change{Op: OpDelete, Collection: sl.coll, Path: sl.key, ID: id}, nil
	})
	if err == errNoop {
		return false, nil
	}
	return deleted, err
}

// errNoop aborts a mutation without error.
var errNoop = errors.New("store: no-op")

// EditAnnotation replaces the content of id. For a checklist the text becomes
// its name.
func (s *Store) EditAnnotation(ref Ref, id int64, text string) (models.Located, error) {
	if strings.TrimSpace(text) == "" {
		return models.Located{}, fmt.Errorf("store: empty content: %w", apperr.ErrInvalidInput)
	}
	var loc models.Located
	err := s.mutate(func(r *models.Root) (Change, error) {
		a, sl, ok := s.find(r, ref, id)
		if !ok {
			return Change{}, fmt.Errorf("store: annotation %d: %w", id, apperr.ErrNotFound)
		}
		switch a.Kind() {
		case models.KindChecklist:
			a.Content.Checklist.Name = text
		default:
			a.Content.Text = text
		}
		loc = locatedAt(a, sl)
		return Change{Op: OpEdit, Collection: sl.coll, Path: sl.key, ID: id}, nil
	})
	return loc, err
}

// SetDeadline sets or clears (zero Deadline) the deadline of id.
func (s *Store) SetDeadline(ref Ref, id int64, dl models.Deadline) (models.Located, error) {
	var loc models.Located
	err := s.mutate(func(r *models.Root) (Change, error) {
		a, sl, ok := s.find(r, ref, id)
		if !ok {
			return Change{}, fmt.Errorf("store: annotation %d: %w", id, apperr.ErrNotFound)
		}
		a.Deadline = dl
		if a.Kind() == models.KindChecklist {
			a.Content.Checklist.Deadline = dl
		}
		loc = locatedAt(a, sl)
		return Change{Op: OpEdit, Collection: sl.coll, Path: sl.key, ID: id}, nil
	})
	return loc, err
}

// ClearAnchor removes every annotation on one anchor and returns how many
// were removed.
func (s *Store) ClearAnchor(coll models.Collection, path string) (int, error) {
	key, err := anchorKey(path)
	if err != nil {
		return 0, err
	}
	n := 0
	err = s.mutate(func(r *models.Root) (Change, error) {
		if coll == models.Lines {
			list, ok := r.Lines.Get(key)
			if !ok {
				return Change{}, errNoop
			}
			n = len(list)
			r.Lines.Delete(key)
		} else {
			anchors := r.AnchorsOf(coll)
			if anchors == nil {
				return Change{}, fmt.Errorf("store: unknown collection %q: %w", coll, apperr.ErrInvalidInput)
			}
			anchor, ok := anchors.Get(key)
			if !ok {
				return Change{}, errNoop
			}
			n = anchor.Len()
			anchors.Delete(key)
		}
		return Change{Op: OpClear, Collection: coll, Path: key}, nil
	})
	if err == errNoop {
		return 0, nil
	}
	return n, err
}

// ClearAll resets the store to empty collections.
func (s *Store) ClearAll() error {
	return s.mutate(func(r *models.Root) (Change, error) {
		*r = *models.NewRoot()
		return Change{Op: OpClear}, nil
	})
}
