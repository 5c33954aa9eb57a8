package index

import (
	"log/slog"
	"strings"

	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/query"
)

// Source is the store as seen by Sync.
type Source interface {
	query.Source
	Checksum() string
}

// Sync rebuilds the index from src unless it already reflects the current
// document checksum. It reports whether a rebuild happened.
func Sync(db AnnotationIndex, src Source, logger *slog.Logger) (bool, error) {
	sum := src.Checksum()
	have, err := db.Checksum()
	if err != nil {
		return false, err
	}
	if sum != "" && have == sum {
		return false, nil
	}

	rows, err := Rows(src)
	if err != nil {
		return false, err
	}
	if err := db.Rebuild(rows, sum); err != nil {
		logger.Warn("sync: rebuild failed", slog.String("error", err.Error()))
		return false, err
	}
	logger.Debug("sync: rebuilt", slog.Int("rows", len(rows)))
	return true, nil
}

// Rows flattens every annotation in src into index rows.
func Rows(src query.Source) ([]Row, error) {
	all, err := query.Filter(src, "all", "all")
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(all))
	for _, l := range all {
		rows = append(rows, Row{
			ID:         l.Annotation.ID,
			Collection: string(l.Collection),
			Path:       l.Path,
			Category:   l.Category,
			Line:       l.Line,
			Type:       l.Annotation.Type,
			Body:       body(l.Annotation),
			Deadline:   l.Annotation.EffectiveDeadline().String(),
			CreatedAt:  l.Annotation.CreatedAt,
		})
	}
	return rows, nil
}

func body(a models.Annotation) string {
	parts := []string{a.Summary()}
	if a.Kind() == models.KindChecklist && a.Content.Checklist != nil {
		for _, it := range a.Content.Checklist.Items {
			parts = append(parts, it.Text)
		}
	}
	return strings.Join(parts, "\n")
}
