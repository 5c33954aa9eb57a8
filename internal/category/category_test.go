package category

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/protasker/internal/apperr"
)

func TestCategories_PriorityOrder(t *testing.T) {
	r := NewRegistry([]string{"Bug", " idea ", "", "note", "bug"})
	assert.Equal(t, []string{"notes", "comments", "checklists", "events", "bugs", "ideas"}, r.Categories())
	assert.Equal(t, []string{"bug", "idea"}, r.Custom())
	assert.Equal(t, 4, r.Priority("bugs"))
	assert.Equal(t, 6, r.Priority("unknowns"))
}

func TestCategoryFor(t *testing.T) {
	r := NewRegistry([]string{"todo"})

	c, err := r.CategoryFor("Note")
	require.NoError(t, err)
	assert.Equal(t, Notes, c)

	c, err = r.CategoryFor("todo")
	require.NoError(t, err)
	assert.Equal(t, "todos", c)

	_, err = r.CategoryFor("line")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestFilterType(t *testing.T) {
	r := NewRegistry([]string{"bug"})

	_, all, err := r.FilterType("All")
	require.NoError(t, err)
	assert.True(t, all)

	for name, want := range map[string]string{
		"notes":      TypeNote,
		"comments":   TypeComment,
		"checklists": TypeChecklist,
		"events":     TypeEvent,
		"note":       TypeNote,
		"Comment":    TypeComment,
		"checklist":  TypeChecklist,
		"event":      TypeEvent,
		"line":       TypeLine,
		"bug":        "bug",
		"Bugs":       "bug",
	} {
		typ, all, err := r.FilterType(name)
		require.NoError(t, err, name)
		assert.False(t, all, name)
		assert.Equal(t, want, typ, name)
	}

	_, _, err = r.FilterType("widgets")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestZeroRegistryKnowsBuiltins(t *testing.T) {
	var r Registry
	assert.True(t, r.Known(Checklists))
	assert.False(t, r.Known("bugs"))
	assert.True(t, r.IsLineType("line"))
	assert.True(t, r.IsLineType("comment"))
	assert.False(t, r.IsLineType("bug"))
}
