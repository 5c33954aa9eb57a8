package store

import (
	"fmt"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/category"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
)

// findChecklist locates a checklist by annotation or payload id within the
// checklists category of a file or directory anchor. Caller holds s.mu.
func (s *Store) findChecklist(r *models.Root, ref Ref, id int64) (*models.Checklist, slot, error) {
	if ref.Collection == models.Lines {
		return nil, slot{}, fmt.Errorf("store: lines hold no checklists: %w", apperr.ErrInvalidInput)
	}
	ref.Category = category.Checklists
	if a, sl, ok := s.find(r, ref, id); ok && a.Kind() == models.KindChecklist {
		return a.Content.Checklist, sl, nil
	}
	anchors := r.AnchorsOf(ref.Collection)
	if anchors == nil {
		return nil, slot{}, fmt.Errorf("store: unknown collection %q: %w", ref.Collection, apperr.ErrInvalidInput)
	}
	for p := anchors.Oldest(); p != nil; p = p.Next() {
		list := p.Value[category.Checklists]
		for i := range list {
			if cl := list[i].Content.Checklist; cl != nil && cl.ID == id {
				return cl, slot{coll: ref.Collection, key: p.Key, cat: category.Checklists, index: i}, nil
			}
		}
	}
	return nil, slot{}, fmt.Errorf("store: checklist %d: %w", id, apperr.ErrNotFound)
}

// checklistOp runs fn against the checklist id and persists the result.
// A stale item reference fails without touching the document.
func (s *Store) checklistOp(ref Ref, id int64, fn func(cl *models.Checklist) error) (models.Checklist, error) {
	var out models.Checklist
	err := s.mutate(func(r *models.Root) (Change, error) {
		cl, sl, err := s.findChecklist(r, ref, id)
		if err != nil {
			return Change{}, err
		}
		if err := fn(cl); err != nil {
			return Change{}, err
		}
		checklist.EnsureUIDs(cl)
		out = *cl.Clone()
		return Change{Op: OpChecklist, Collection: sl.coll, Path: sl.key, ID: id}, nil
	})
	return out, err
}

// ToggleChecklistItem flips the done flag of one item.
func (s *Store) ToggleChecklistItem(ref Ref, checklistID int64, item checklist.ItemRef) (models.Checklist, error) {
	return s.checklistOp(ref, checklistID, func(cl *models.Checklist) error {
		_, err := checklist.Toggle(cl, item)
		return err
	})
}

// AddChecklistItem appends an unchecked item.
func (s *Store) AddChecklistItem(ref Ref, checklistID int64, text string) (models.Checklist, error) {
	if _, err := checklist.NewItem(text); err != nil {
		return models.Checklist{}, err
	}
	return s.checklistOp(ref, checklistID, func(cl *models.Checklist) error {
		_, err := checklist.AddItem(cl, text)
		return err
	})
}

// RemoveChecklistItem deletes one item.
func (s *Store) RemoveChecklistItem(ref Ref, checklistID int64, item checklist.ItemRef) (models.Checklist, error) {
	return s.checklistOp(ref, checklistID, func(cl *models.Checklist) error {
		_, err := checklist.RemoveItem(cl, item)
		return err
	})
}

// Checklist returns a copy of the checklist id.
func (s *Store) Checklist(ref Ref, id int64) (models.Checklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cl, _, err := s.findChecklist(s.root, ref, id)
	if err != nil {
		return models.Checklist{}, err
	}
	return *cl.Clone(), nil
}
