// Package models defines the persisted annotation data model.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/deadline"
)

// Collection names a top-level bucket of the store.
type Collection string

const (
	Files       Collection = "files"
	Directories Collection = "directories"
	Lines       Collection = "lines"
)

// Collections lists every collection in persisted order.
var Collections = []Collection{Files, Directories, Lines}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(strings.ToLower(strings.TrimSpace(s))); c {
	case Files, Directories, Lines:
		return c, nil
	}
	return "", fmt.Errorf("models: unknown collection %q: %w", s, apperr.ErrInvalidInput)
}

// Kind discriminates the Content union.
type Kind int

const (
	KindText Kind = iota
	KindChecklist
)

func (k Kind) String() string {
	if k == KindChecklist {
		return "checklist"
	}
	return "text"
}

// ChecklistItem is one checkable entry. UID is stable across edits; older
// documents may lack it, in which case the item is addressed by index only.
type ChecklistItem struct {
	UID  string `json:"uid,omitempty"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Checklist is the content payload of a checklist annotation.
type Checklist struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Items     []ChecklistItem `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
	Deadline  Deadline        `json:"deadline"`
}

// Clone returns a deep copy of c.
func (c *Checklist) Clone() *Checklist {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]ChecklistItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// UnmarshalJSON tolerates a missing items array and loose timestamps.
func (c *Checklist) UnmarshalJSON(data []byte) error {
	var w struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Items     []ChecklistItem `json:"items"`
		CreatedAt string          `json:"createdAt"`
		Deadline  Deadline        `json:"deadline"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Checklist{
		ID:        w.ID,
		Name:      w.Name,
		Items:     w.Items,
		CreatedAt: parseLoose(w.CreatedAt),
		Deadline:  w.Deadline,
	}
	if c.Items == nil {
		c.Items = []ChecklistItem{}
	}
	return nil
}

// Content holds either plain text or a checklist payload. Which one is
// meaningful is decided by the owning Annotation's Type.
type Content struct {
	Text      string
	Checklist *Checklist
}

// TextContent wraps s as plain content.
func TextContent(s string) Content { return Content{Text: s} }

// ChecklistContent wraps c as checklist content.
func ChecklistContent(c *Checklist) Content { return Content{Checklist: c} }

// Annotation is one typed record attached to an anchor.
type Annotation struct {
	ID        int64
	Type      string
	Content   Content
	CreatedAt time.Time
	Deadline  Deadline
}

// Kind reports which Content variant is active.
func (a Annotation) Kind() Kind {
	if a.Type == "checklist" {
		return KindChecklist
	}
	return KindText
}

// Summary returns the display text: the content for plain annotations, the
// name for checklists.
func (a Annotation) Summary() string {
	switch a.Kind() {
	case KindChecklist:
		if a.Content.Checklist == nil {
			return ""
		}
		return a.Content.Checklist.Name
	default:
		return a.Content.Text
	}
}

// EffectiveDeadline returns the annotation's own deadline, falling back to the
// checklist payload's deadline.
func (a Annotation) EffectiveDeadline() Deadline {
	if a.Deadline.IsSet() {
		return a.Deadline
	}
	if a.Kind() == KindChecklist && a.Content.Checklist != nil {
		return a.Content.Checklist.Deadline
	}
	return Deadline{}
}

// Strings returns every string-valued field reachable from a, including
// nested checklist item text. Used for free-text search.
func (a Annotation) Strings() []string {
	out := []string{a.Type, a.CreatedAt.UTC().Format(deadline.Layout)}
	if a.Deadline.IsSet() {
		out = append(out, a.Deadline.String())
	}
	switch a.Kind() {
	case KindChecklist:
		if cl := a.Content.Checklist; cl != nil {
			out = append(out, cl.Name)
			if cl.Deadline.IsSet() {
				out = append(out, cl.Deadline.String())
			}
			for _, it := range cl.Items {
				out = append(out, it.Text)
			}
		}
	default:
		out = append(out, a.Content.Text)
	}
	return out
}

// Clone returns a deep copy of a.
func (a Annotation) Clone() Annotation {
	a.Content.Checklist = a.Content.Checklist.Clone()
	return a
}

type annotationOut struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Content   any       `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  Deadline  `json:"deadline"`
	Line      *int      `json:"line,omitempty"`
}

type annotationIn struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	CreatedAt string          `json:"createdAt"`
	Deadline  Deadline        `json:"deadline"`
	Line      int             `json:"line"`
}

func (a Annotation) wire() annotationOut {
	out := annotationOut{ID: a.ID, Type: a.Type, CreatedAt: a.CreatedAt, Deadline: a.Deadline}
	switch a.Kind() {
	case KindChecklist:
		cl := a.Content.Checklist
		if cl == nil {
			cl = &Checklist{ID: a.ID, Items: []ChecklistItem{}}
		}
		out.Content = cl
	default:
		out.Content = a.Content.Text
	}
	return out
}

func (a *Annotation) fromWire(w annotationIn) {
	*a = Annotation{
		ID:        w.ID,
		Type:      strings.ToLower(w.Type),
		CreatedAt: parseLoose(w.CreatedAt),
		Deadline:  w.Deadline,
	}
	raw := bytes.TrimSpace(w.Content)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		_ = json.Unmarshal(raw, &a.Content.Text)
	case raw[0] == '{':
		var cl Checklist
		if err := json.Unmarshal(raw, &cl); err == nil {
			a.Type = "checklist"
			a.Content.Checklist = &cl
		} else {
			a.Content.Text = string(raw)
		}
	default:
		a.Content.Text = string(raw)
	}
	if a.Kind() == KindChecklist && a.Content.Checklist == nil {
		a.Content.Checklist = &Checklist{ID: a.ID, Name: a.Content.Text, Items: []ChecklistItem{}, CreatedAt: a.CreatedAt}
		a.Content.Text = ""
	}
}

// MarshalJSON implements json.Marshaler.
func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var w annotationIn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.fromWire(w)
	return nil
}

// LineAnnotation is an annotation pinned to a 1-based line of a file.
type LineAnnotation struct {
	Annotation
	Line int
}

// MarshalJSON implements json.Marshaler.
func (l LineAnnotation) MarshalJSON() ([]byte, error) {
	w := l.Annotation.wire()
	line := l.Line
	w.Line = &line
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LineAnnotation) UnmarshalJSON(data []byte) error {
	var w annotationIn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Annotation.fromWire(w)
	l.Line = w.Line
	return nil
}

// Clone returns a deep copy of l.
func (l LineAnnotation) Clone() LineAnnotation {
	l.Annotation = l.Annotation.Clone()
	return l
}

func parseLoose(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := deadline.Parse(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
