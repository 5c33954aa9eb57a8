package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveReload(t *testing.T) {
	next := Annotations{CustomTypes: []string{"Bug"}, Notifications: false}
	var failNext bool
	l := NewLive(Annotations{Notifications: true}, func() (Annotations, error) {
		if failNext {
			return Annotations{}, errors.New("boom")
		}
		return next, nil
	}, nil)

	assert.True(t, l.NotificationsEnabled())
	assert.False(t, l.Registry().IsType("bug"))

	require.NoError(t, l.Reload())
	assert.False(t, l.NotificationsEnabled())
	assert.True(t, l.Registry().IsType("bug"))

	failNext = true
	assert.Error(t, l.Reload())
	assert.True(t, l.Registry().IsType("bug"), "failed reload keeps previous settings")
}

func TestCurrentIsACopy(t *testing.T) {
	types := []string{"bug"}
	l := NewLive(Annotations{CustomTypes: types}, nil, nil)
	types[0] = "changed"
	cur := l.Current()
	assert.Equal(t, []string{"bug"}, cur.CustomTypes)
	cur.CustomTypes[0] = "mutated"
	assert.Equal(t, []string{"bug"}, l.Current().CustomTypes)
	assert.NoError(t, l.Reload())
}

func TestAnnotationsValidate(t *testing.T) {
	assert.NoError(t, Annotations{CustomTypes: []string{"bug", "follow-up", "q_2"}}.Validate())
	assert.Error(t, Annotations{CustomTypes: []string{""}}.Validate())
	assert.Error(t, Annotations{CustomTypes: []string{"has space"}}.Validate())
	assert.Error(t, Annotations{CustomTypes: []string{"Note"}}.Validate())
	assert.Error(t, Annotations{CustomTypes: []string{"line"}}.Validate())
}
