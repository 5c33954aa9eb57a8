// Package annotationservice is the boundary between the outer surfaces (REST,
// MCP) and the engine. It validates input, normalizes deadlines, owns the
// tree view state and keeps the search index in step with the store.
package annotationservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/index"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/projection"
	"github.com/starford/protasker/internal/query"
	"github.com/starford/protasker/internal/store"
)

// AddRequest describes a new file or directory annotation. Items is only
// used for checklists, where Content is the checklist name.
type AddRequest struct {
	Path      string   `json:"path"`
	Directory bool     `json:"directory"`
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	Items     []string `json:"items,omitempty"`
	Deadline  string   `json:"deadline,omitempty"`
}

// LineRequest describes a new line annotation.
type LineRequest struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Type     string `json:"type,omitempty"`
	Content  string `json:"content"`
	Deadline string `json:"deadline,omitempty"`
}

// Service coordinates the store, query engine, projection and index.
type Service struct {
	store *store.Store
	db    index.AnnotationIndex
	view  *projection.View
	log   *slog.Logger
}

// NewService creates a new annotation service. db may be nil when the index
// is disabled.
func NewService(st *store.Store, db index.AnnotationIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, db: db, view: projection.NewView(), log: logger}
}

// Store exposes the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// HandleChange keeps derived state current after a store change.
func (s *Service) HandleChange(ch store.Change) {
	if err := s.view.Refresh(s.store); err != nil {
		s.log.Warn("view refresh failed", slog.String("error", err.Error()))
	}
	s.SyncIndex()
}

// SyncIndex rebuilds the search index when the document changed.
func (s *Service) SyncIndex() {
	if s.db == nil {
		return
	}
	if _, err := index.Sync(s.db, s.store, s.log); err != nil {
		s.log.Error("index sync failed", slog.String("error", err.Error()))
	}
}

func parseDeadline(raw string) (models.Deadline, error) {
	return models.ParseDeadline(raw)
}

// AddAnnotation adds a file or directory annotation.
func (s *Service) AddAnnotation(_ context.Context, req AddRequest) (models.Located, error) {
	dl, err := parseDeadline(req.Deadline)
	if err != nil {
		return models.Located{}, err
	}
	content := models.TextContent(req.Content)
	if strings.EqualFold(strings.TrimSpace(req.Type), "checklist") {
		cl := &models.Checklist{Name: strings.TrimSpace(req.Content), Items: []models.ChecklistItem{}}
		for _, text := range req.Items {
			if _, err := checklist.AddItem(cl, text); err != nil {
				return models.Located{}, err
			}
		}
		content = models.ChecklistContent(cl)
	} else if strings.TrimSpace(req.Content) == "" {
		return models.Located{}, fmt.Errorf("content is required: %w", apperr.ErrInvalidInput)
	}
	return s.store.AddEntry(req.Path, req.Directory, req.Type, content, dl)
}

// AddLineAnnotation adds an annotation to one line of a file.
func (s *Service) AddLineAnnotation(_ context.Context, req LineRequest) (models.Located, error) {
	dl, err := parseDeadline(req.Deadline)
	if err != nil {
		return models.Located{}, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return models.Located{}, fmt.Errorf("content is required: %w", apperr.ErrInvalidInput)
	}
	return s.store.AddLineAnnotation(req.Path, req.Line, req.Type, req.Content, dl)
}

// Get returns one annotation.
func (s *Service) Get(_ context.Context, ref store.Ref, id int64) (models.Located, error) {
	return s.store.Get(ref, id)
}

// Edit replaces the content of an annotation.
func (s *Service) Edit(_ context.Context, ref store.Ref, id int64, content string) (models.Located, error) {
	return s.store.EditAnnotation(ref, id, content)
}

// SetDeadline sets or, for a blank value, clears a deadline.
func (s *Service) SetDeadline(_ context.Context, ref store.Ref, id int64, raw string) (models.Located, error) {
	dl, err := parseDeadline(raw)
	if err != nil {
		return models.Located{}, err
	}
	return s.store.SetDeadline(ref, id, dl)
}

// Delete removes an annotation. Deleting an absent id reports false.
func (s *Service) Delete(_ context.Context, ref store.Ref, id int64) (bool, error) {
	return s.store.DeleteAnnotation(ref, id)
}

// AddItem appends a checklist item.
func (s *Service) AddItem(_ context.Context, ref store.Ref, id int64, text string) (models.Checklist, error) {
	return s.store.AddChecklistItem(ref, id, text)
}

// ToggleItem flips a checklist item.
func (s *Service) ToggleItem(_ context.Context, ref store.Ref, id int64, item checklist.ItemRef) (models.Checklist, error) {
	return s.store.ToggleChecklistItem(ref, id, item)
}

// RemoveItem deletes a checklist item.
func (s *Service) RemoveItem(_ context.Context, ref store.Ref, id int64, item checklist.ItemRef) (models.Checklist, error) {
	return s.store.RemoveChecklistItem(ref, id, item)
}

// Progress returns the completion of a checklist.
func (s *Service) Progress(_ context.Context, ref store.Ref, id int64) (checklist.Progress, error) {
	cl, err := s.store.Checklist(ref, id)
	if err != nil {
		return checklist.Progress{}, err
	}
	return checklist.ProgressOf(&cl), nil
}

// Search runs a free-text search. A blank query is rejected.
func (s *Service) Search(_ context.Context, q string) ([]models.Located, error) {
	q, err := query.ValidateQuery(q)
	if err != nil {
		return nil, err
	}
	return query.Search(s.store, q), nil
}

// Filter runs a type/category filter.
func (s *Service) Filter(_ context.Context, typ, coll string) ([]models.Located, error) {
	return query.Filter(s.store, typ, coll)
}

// ApplySearch runs Search and puts the view into searching mode.
func (s *Service) ApplySearch(ctx context.Context, q string) ([]models.Located, error) {
	res, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	s.view.Search(strings.TrimSpace(q), res)
	return res, nil
}

// ApplyFilter runs Filter and puts the view into filtered mode.
func (s *Service) ApplyFilter(ctx context.Context, typ, coll string) ([]models.Located, error) {
	res, err := s.Filter(ctx, typ, coll)
	if err != nil {
		return nil, err
	}
	s.view.Filter(typ, coll, res)
	return res, nil
}

// ResetView clears any search or filter.
func (s *Service) ResetView(_ context.Context) projection.ViewState {
	s.view.Reset()
	return s.view.State()
}

// ViewState returns the current view mode.
func (s *Service) ViewState(_ context.Context) projection.ViewState {
	return s.view.State()
}

// Tree returns the top level of the projection under the current view.
func (s *Service) Tree(_ context.Context) []projection.Node {
	return projection.Roots(s.store, s.view.Results())
}

// TreeChildren expands one projection node under the current view.
func (s *Service) TreeChildren(_ context.Context, handle string) ([]projection.Node, error) {
	return projection.Children(s.store, s.view.Results(), handle)
}

// FullText searches through the SQLite index, falling back to the in-memory
// engine when the index is disabled.
func (s *Service) FullText(ctx context.Context, q string, limit int) ([]index.SearchResult, error) {
	q, err := query.ValidateQuery(q)
	if err != nil {
		return nil, err
	}
	if s.db != nil {
		return s.db.Search(q, limit)
	}
	res, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	out := make([]index.SearchResult, 0, min(limit, len(res)))
	for _, l := range res {
		if len(out) == limit {
			break
		}
		out = append(out, index.SearchResult{
			ID:         l.Annotation.ID,
			Collection: string(l.Collection),
			Path:       l.Path,
			Category:   l.Category,
			Line:       l.Line,
			Type:       l.Annotation.Type,
			Snippet:    l.Annotation.Summary(),
		})
	}
	return out, nil
}

// Anchors lists anchor keys per collection.
func (s *Service) Anchors(_ context.Context) map[models.Collection][]string {
	return s.store.Anchors()
}

// LineAnnotations returns annotations on one line.
func (s *Service) LineAnnotations(_ context.Context, path string, line int) ([]models.LineAnnotation, error) {
	if line < 1 {
		return nil, fmt.Errorf("line must be >= 1: %w", apperr.ErrInvalidInput)
	}
	out := s.store.LineAnnotations(path, line)
	if out == nil {
		out = []models.LineAnnotation{}
	}
	return out, nil
}

// ClearAnchor removes every annotation on one anchor.
func (s *Service) ClearAnchor(_ context.Context, coll models.Collection, path string) (int, error) {
	return s.store.ClearAnchor(coll, path)
}

// ClearAll empties the store.
func (s *Service) ClearAll(_ context.Context) error {
	return s.store.ClearAll()
}
