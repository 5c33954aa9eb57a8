// Package projection builds the display-agnostic tree over the store:
// anchors, then annotations, then checklist items. It never runs a query
// itself; an optional result set restricts what is shown.
package projection

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/pathkey"
	"github.com/starford/protasker/internal/query"
)

// Level is the depth of a node.
type Level string

const (
	LevelAnchor     Level = "anchor"
	LevelAnnotation Level = "annotation"
	LevelItem       Level = "item"
)

// Detail is the full field set of an annotation for detail display.
type Detail struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  string    `json:"deadline,omitempty"`
	Line      int       `json:"line,omitempty"`
}

// Node is one tree entry. Handle is opaque and is passed back to Children.
type Node struct {
	Handle          string                `json:"handle"`
	Level           Level                 `json:"level"`
	Label           string                `json:"label"`
	Collection      models.Collection     `json:"collection"`
	Path            string                `json:"path"`
	Category        string                `json:"category,omitempty"`
	Line            int                   `json:"line,omitempty"`
	Count           int                   `json:"count,omitempty"`
	PendingDeadline bool                  `json:"pending_deadline,omitempty"`
	Expandable      bool                  `json:"expandable"`
	Progress        *checklist.Progress   `json:"progress,omitempty"`
	Item            *models.ChecklistItem `json:"item,omitempty"`
	ItemIndex       int                   `json:"item_index,omitempty"`
	Detail          *Detail               `json:"detail,omitempty"`
}

// rootOrder is the anchor order at level 0.
var rootOrder = []models.Collection{models.Directories, models.Files, models.Lines}

// Roots returns one node per visible anchor. rs may be nil.
func Roots(src query.Source, rs *query.ResultSet) []Node {
	var out []Node
	known := src.Registry().Categories()
	src.View(func(r *models.Root) {
		for _, coll := range rootOrder {
			if coll == models.Lines {
				for p := r.Lines.Oldest(); p != nil; p = p.Next() {
					n := anchorNode(coll, p.Key)
					for _, la := range p.Value {
						tally(&n, la.Annotation, rs)
					}
					if keep(n, rs) {
						out = append(out, n)
					}
				}
				continue
			}
			for p := r.AnchorsOf(coll).Oldest(); p != nil; p = p.Next() {
				n := anchorNode(coll, p.Key)
				for _, cat := range p.Value.Categories(known) {
					for _, a := range p.Value[cat] {
						tally(&n, a, rs)
					}
				}
				if keep(n, rs) {
					out = append(out, n)
				}
			}
		}
	})
	return out
}

func anchorNode(coll models.Collection, key string) Node {
	label := pathkey.Base(key)
	if label == "" {
		label = key
	}
	return Node{
		Handle:     handle(coll, key, 0),
		Level:      LevelAnchor,
		Label:      label,
		Collection: coll,
		Path:       key,
		Expandable: true,
	}
}

func tally(n *Node, a models.Annotation, rs *query.ResultSet) {
	if !rs.HasID(a.ID) {
		return
	}
	n.Count++
	if pending(a) {
		n.PendingDeadline = true
	}
}

func keep(n Node, rs *query.ResultSet) bool {
	if rs == nil {
		return true
	}
	return n.Count > 0 && rs.HasAnchor(n.Collection, n.Path)
}

// pending reports an annotation with a usable deadline that is not a fully
// completed checklist.
func pending(a models.Annotation) bool {
	if _, ok := a.EffectiveDeadline().Time(); !ok {
		return false
	}
	if a.Kind() == models.KindChecklist {
		p := checklist.ProgressOf(a.Content.Checklist)
		return p.Total == 0 || p.Completed < p.Total
	}
	return true
}

// Children expands the node identified by h. rs may be nil.
func Children(src query.Source, rs *query.ResultSet, h string) ([]Node, error) {
	coll, key, id, err := parseHandle(h)
	if err != nil {
		return nil, err
	}
	var (
		out   []Node
		found bool
	)
	known := src.Registry().Categories()
	src.View(func(r *models.Root) {
		if coll == models.Lines {
			list, ok := r.Lines.Get(key)
			if !ok {
				return
			}
			found = true
			for _, la := range list {
				if id == 0 && rs.HasID(la.ID) {
					out = append(out, annotationNode(coll, key, "", la.Line, la.Annotation))
				}
			}
			return
		}
		anchor, ok := r.AnchorsOf(coll).Get(key)
		if !ok {
			return
		}
		for _, cat := range anchor.Categories(known) {
			for _, a := range anchor[cat] {
				switch {
				case id == 0:
					found = true
					if rs.HasID(a.ID) {
						out = append(out, annotationNode(coll, key, cat, 0, a))
					}
				case a.ID == id:
					found = true
					out = itemNodes(coll, key, cat, a)
				}
			}
		}
	})
	if !found {
		return nil, fmt.Errorf("projection: node %q: %w", h, apperr.ErrNotFound)
	}
	return out, nil
}

func annotationNode(coll models.Collection, key, cat string, line int, a models.Annotation) Node {
	n := Node{
		Handle:          handle(coll, key, a.ID),
		Level:           LevelAnnotation,
		Collection:      coll,
		Path:            key,
		Category:        cat,
		Line:            line,
		PendingDeadline: pending(a),
		Detail: &Detail{
			ID:        a.ID,
			Type:      a.Type,
			Content:   a.Summary(),
			CreatedAt: a.CreatedAt,
			Deadline:  a.EffectiveDeadline().String(),
			Line:      line,
		},
	}
	switch a.Kind() {
	case models.KindChecklist:
		p := checklist.ProgressOf(a.Content.Checklist)
		n.Progress = &p
		n.Expandable = true
		n.Label = fmt.Sprintf("%s (%d, %d%%)", a.Summary(), p.Total, p.Percent)
	default:
		if line > 0 {
			n.Label = fmt.Sprintf("Line %d: %s", line, a.Summary())
		} else {
			n.Label = fmt.Sprintf("%s: %s", strings.ToUpper(a.Type), a.Summary())
		}
	}
	return n
}

func itemNodes(coll models.Collection, key, cat string, a models.Annotation) []Node {
	if a.Kind() != models.KindChecklist || a.Content.Checklist == nil {
		return []Node{}
	}
	items := a.Content.Checklist.Items
	out := make([]Node, 0, len(items))
	for i := range items {
		it := items[i]
		out = append(out, Node{
			Handle:     string(coll) + ":" + strconv.FormatInt(a.ID, 10) + "." + strconv.Itoa(i) + ":" + key,
			Level:      LevelItem,
			Label:      it.Text,
			Collection: coll,
			Path:       key,
			Category:   cat,
			Item:       &it,
			ItemIndex:  i,
		})
	}
	return out
}

// handle encodes collection, annotation id (0 for anchors) and anchor key.
// The key goes last since it may itself contain ':'. Item handles use
// "id.index" in the middle and are leaves.
func handle(coll models.Collection, key string, id int64) string {
	return string(coll) + ":" + strconv.FormatInt(id, 10) + ":" + key
}

func parseHandle(h string) (models.Collection, string, int64, error) {
	parts := strings.SplitN(h, ":", 3)
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("projection: malformed node %q: %w", h, apperr.ErrInvalidInput)
	}
	coll, err := models.ParseCollection(parts[0])
	if err != nil {
		return "", "", 0, err
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 0 {
		return "", "", 0, fmt.Errorf("projection: malformed node id %q: %w", parts[1], apperr.ErrInvalidInput)
	}
	return coll, parts[2], id, nil
}
