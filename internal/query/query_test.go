package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/category"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/storage"
	"github.com/starford/protasker/internal/store"
)

func seeded(t *testing.T) *store.Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	s := store.Open(fs, "doc.json",
		store.WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }),
		store.WithRegistry(func() category.Registry { return category.NewRegistry([]string{"bug"}) }),
	)

	must := func(_ models.Located, err error) { require.NoError(t, err) }
	must(s.AddEntry("/a/B.txt", false, "event", models.TextContent("Release party"), models.Deadline{}))
	must(s.AddEntry("/a/B.txt", false, "note", models.TextContent("Buy milk"), models.Deadline{}))
	must(s.AddEntry("/a/B.txt", false, "bug", models.TextContent("crash on save"), models.Deadline{}))
	must(s.AddEntry("/src", true, "checklist", models.ChecklistContent(&models.Checklist{
		Name:  "Ship",
		Items: []models.ChecklistItem{{Text: "write MILK docs"}},
	}), models.Deadline{}))
	must(s.AddEntry("/src", true, "comment", models.TextContent("looks fine"), models.Deadline{}))
	must(s.AddLineAnnotation("/a/b.txt", 10, "", "milk again", models.Deadline{}))
	must(s.AddLineAnnotation("/a/b.txt", 12, "bug", "off by one", models.Deadline{}))
	return s
}

func TestScenarioFilterNotesFiles(t *testing.T) {
	s := seeded(t)
	got, err := Filter(s, "notes", "files")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/a/b.txt", got[0].Path)
	assert.Equal(t, "Buy milk", got[0].Annotation.Content.Text)
	assert.Equal(t, category.Notes, got[0].Category)
}

func TestSearchIsCaseInsensitiveAndDeep(t *testing.T) {
	s := seeded(t)
	got := Search(s, "MiLk")
	require.Len(t, got, 3)

	assert.Equal(t, models.Files, got[0].Collection)
	assert.Equal(t, "Buy milk", got[0].Annotation.Summary())
	assert.Equal(t, models.Directories, got[1].Collection)
	assert.Equal(t, "Ship", got[1].Annotation.Summary(), "matched via nested item text")
	assert.Equal(t, models.Lines, got[2].Collection)
	assert.Equal(t, 10, got[2].Line)
}

func TestSearchMatchesType(t *testing.T) {
	s := seeded(t)
	got := Search(s, "checklist")
	require.Len(t, got, 1)
	assert.Equal(t, "/src", got[0].Path)
}

func TestFilterCategoryPriorityOrder(t *testing.T) {
	s := seeded(t)
	got, err := Filter(s, "all", "files")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"notes", "events", "bugs"},
		[]string{got[0].Category, got[1].Category, got[2].Category})
}

func TestFilterLines(t *testing.T) {
	s := seeded(t)
	got, err := Filter(s, "line", "lines")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Line)

	got, err = Filter(s, "bugs", "lines")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].Line)

	got, err = Filter(s, "bug", "all")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFilterAllIsSuperset(t *testing.T) {
	s := seeded(t)
	all, err := Filter(s, "all", "all")
	require.NoError(t, err)
	ids := NewResultSet(all)

	for _, typ := range []string{"notes", "comments", "checklists", "events", "line", "bug"} {
		for _, coll := range []string{"files", "directories", "lines", "all"} {
			sub, err := Filter(s, typ, coll)
			require.NoError(t, err)
			for _, l := range sub {
				assert.True(t, ids.HasID(l.Annotation.ID), "%s/%s id %d", typ, coll, l.Annotation.ID)
			}
		}
	}
}

func TestFilterRejectsUnknown(t *testing.T) {
	s := seeded(t)
	_, err := Filter(s, "feature", "all")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = Filter(s, "all", "buckets")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestDeletedNeverReturned(t *testing.T) {
	s := seeded(t)
	notes, _ := Filter(s, "notes", "files")
	require.Len(t, notes, 1)
	id := notes[0].Annotation.ID

	ok, err := s.DeleteAnnotation(store.Ref{Collection: models.Files, Path: notes[0].Path, Category: notes[0].Category}, id)
	require.NoError(t, err)
	require.True(t, ok)

	for _, l := range Search(s, "milk") {
		assert.NotEqual(t, id, l.Annotation.ID)
	}
	all, _ := Filter(s, "all", "all")
	assert.False(t, NewResultSet(all).HasID(id))
}

func TestValidateQuery(t *testing.T) {
	_, err := ValidateQuery("  \t")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	q, err := ValidateQuery(" milk ")
	require.NoError(t, err)
	assert.Equal(t, "milk", q)
}

func TestResultSetAnchors(t *testing.T) {
	s := seeded(t)
	rs := NewResultSet(Search(s, "release"))
	assert.Equal(t, 1, rs.Len())
	assert.True(t, rs.HasAnchor(models.Files, "/a/b.txt"))
	assert.False(t, rs.HasAnchor(models.Directories, "/src"))

	var none *ResultSet
	assert.True(t, none.HasID(1))
}
