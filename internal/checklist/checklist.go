// Package checklist manages the ordered, checkable items nested inside a
// checklist annotation.
package checklist

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/models"
)

// ItemRef addresses one item. A non-empty UID wins and is re-resolved to the
// item's current index; otherwise Index is used after a bounds check.
type ItemRef struct {
	Index int    `json:"index"`
	UID   string `json:"uid,omitempty"`
}

// Band is the presentation tier of a progress percentage.
type Band string

const (
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

// BandFor maps a percentage to its band: <=30 low, <=70 mid, else high.
func BandFor(percent int) Band {
	switch {
	case percent <= 30:
		return BandLow
	case percent <= 70:
		return BandMid
	default:
		return BandHigh
	}
}

// Progress summarizes completion of a checklist.
type Progress struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Percent   int  `json:"percent"`
	Band      Band `json:"band"`
}

// ProgressOf computes round(completed/total*100), 0 for an empty list.
func ProgressOf(cl *models.Checklist) Progress {
	var p Progress
	if cl != nil {
		p.Total = len(cl.Items)
		for _, it := range cl.Items {
			if it.Done {
				p.Completed++
			}
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	p.Band = BandFor(p.Percent)
	return p
}

// NewItem returns an unchecked item with a fresh UID.
func NewItem(text string) (models.ChecklistItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChecklistItem{}, fmt.Errorf("checklist: empty item text: %w", apperr.ErrInvalidInput)
	}
	return models.ChecklistItem{UID: uuid.NewString(), Text: text}, nil
}

// EnsureUIDs assigns a UID to every item lacking one and reports how many
// were assigned.
func EnsureUIDs(cl *models.Checklist) int {
	n := 0
	for i := range cl.Items {
		if cl.Items[i].UID == "" {
			cl.Items[i].UID = uuid.NewString()
			n++
		}
	}
	return n
}

// Resolve returns the current index of ref in cl.
func Resolve(cl *models.Checklist, ref ItemRef) (int, error) {
	if ref.UID != "" {
		for i, it := range cl.Items {
			if it.UID == ref.UID {
				return i, nil
			}
		}
		return -1, fmt.Errorf("checklist: item %s: %w", ref.UID, apperr.ErrNotFound)
	}
	if ref.Index < 0 || ref.Index >= len(cl.Items) {
		return -1, fmt.Errorf("checklist: item index %d out of range [0,%d): %w", ref.Index, len(cl.Items), apperr.ErrInvalidInput)
	}
	return ref.Index, nil
}

// AddItem appends an unchecked item.
func AddItem(cl *models.Checklist, text string) (models.ChecklistItem, error) {
	it, err := NewItem(text)
	if err != nil {
		return it, err
	}
	cl.Items = append(cl.Items, it)
	return it, nil
}

// RemoveItem deletes the referenced item and returns it.
func RemoveItem(cl *models.Checklist, ref ItemRef) (models.ChecklistItem, error) {
	i, err := Resolve(cl, ref)
	if err != nil {
		return models.ChecklistItem{}, err
	}
	it := cl.Items[i]
	cl.Items = append(cl.Items[:i], cl.Items[i+1:]...)
	return it, nil
}

// Toggle flips the done flag of the referenced item and returns it.
func Toggle(cl *models.Checklist, ref ItemRef) (models.ChecklistItem, error) {
	i, err := Resolve(cl, ref)
	if err != nil {
		return models.ChecklistItem{}, err
	}
	cl.Items[i].Done = !cl.Items[i].Done
	return cl.Items[i], nil
}
