package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Anchor maps a category name to its annotations, in append order.
type Anchor map[string][]Annotation

// Len returns the number of annotations across all categories.
func (a Anchor) Len() int {
	n := 0
	for _, list := range a {
		n += len(list)
	}
	return n
}

// AnchorMap is an insertion-ordered map from AnchorKey to Anchor.
type AnchorMap = orderedmap.OrderedMap[string, Anchor]

// LineMap is an insertion-ordered map from AnchorKey to line annotations.
type LineMap = orderedmap.OrderedMap[string, []LineAnnotation]

// Root is the whole persisted document.
type Root struct {
	Files       *AnchorMap `json:"files"`
	Directories *AnchorMap `json:"directories"`
	Lines       *LineMap   `json:"lines"`
}

// NewRoot returns an empty document.
func NewRoot() *Root {
	return &Root{
		Files:       orderedmap.New[string, Anchor](),
		Directories: orderedmap.New[string, Anchor](),
		Lines:       orderedmap.New[string, []LineAnnotation](),
	}
}

// Normalize fills missing collections and drops empty containers, so a
// document decoded from disk has the same shape as one built in
// memory.
func (r *Root) Normalize() {
	if r.Files == nil {
		r.Files = orderedmap.New[string, Anchor]()
	}
	if r.Directories == nil {
		r.Directories = orderedmap.New[string, Anchor]()
	}
	if r.Lines == nil {
		r.Lines = orderedmap.New[string, []LineAnnotation]()
	}
	for _, m := range []*AnchorMap{r.Files, r.Directories} {
		var empty []string
		for p := m.Oldest(); p != nil; p = p.Next() {
			for cat, list := range p.Value {
				if len(list) == 0 {
					delete(p.Value, cat)
				}
			}
			if len(p.Value) == 0 {
				empty = append(empty, p.Key)
			}
		}
		for _, k := range empty {
			m.Delete(k)
		}
	}
	var empty []string
	for p := r.Lines.Oldest(); p != nil; p = p.Next() {
		if len(p.Value) == 0 {
			empty = append(empty, p.Key)
		}
	}
	for _, k := range empty {
		r.Lines.Delete(k)
	}
}

// AnchorsOf returns the anchor map for files or directories, nil for lines.
func (r *Root) AnchorsOf(c Collection) *AnchorMap {
	switch c {
	case Files:
		return r.Files
	case Directories:
		return r.Directories
	}
	return nil
}

// MaxID returns the largest annotation or checklist id in the document.
func (r *Root) MaxID() int64 {
	var max int64
	see := func(a Annotation) {
		if a.ID > max {
			max = a.ID
		}
		if cl := a.Content.Checklist; cl != nil && cl.ID > max {
			max = cl.ID
		}
	}
	for _, m := range []*AnchorMap{r.Files, r.Directories} {
		for p := m.Oldest(); p != nil; p = p.Next() {
			for _, list := range p.Value {
				for _, a := range list {
					see(a)
				}
			}
		}
	}
	for p := r.Lines.Oldest(); p != nil; p = p.Next() {
		for _, l := range p.Value {
			see(l.Annotation)
		}
	}
	return max
}

// Count returns the number of anchors and annotations in each collection.
func (r *Root) Count() (anchors, annotations int) {
	for _, m := range []*AnchorMap{r.Files, r.Directories} {
		anchors += m.Len()
		for p := m.Oldest(); p != nil; p = p.Next() {
			annotations += p.Value.Len()
		}
	}
	anchors += r.Lines.Len()
	for p := r.Lines.Oldest(); p != nil; p = p.Next() {
		annotations += len(p.Value)
	}
	return anchors, annotations
}
