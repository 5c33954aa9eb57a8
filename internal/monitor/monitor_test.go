package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/storage"
	"github.com/starford/protasker/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, c *clock) *store.Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return store.Open(fs, "doc.json", store.WithClock(c.Now))
}

func TestScenarioApproachingFiresOnce(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, err := s.AddEntry("/a", false, "event", models.TextContent("standup"), models.DeadlineAt(c.Now().Add(5*time.Minute)))
	require.NoError(t, err)

	var approaching, overdue int32
	m := New(s, WithClock(c.Now),
		OnApproaching(func(Alert) { atomic.AddInt32(&approaching, 1) }),
		OnOverdue(func(Alert) { atomic.AddInt32(&overdue, 1) }),
	)

	alerts := m.Poll()
	require.Len(t, alerts, 1)
	assert.Equal(t, Approaching, alerts[0].State)
	assert.Equal(t, "File: /a", alerts[0].Location)

	assert.Empty(t, m.Poll())
	assert.Equal(t, int32(1), atomic.LoadInt32(&approaching))

	c.Advance(10 * time.Minute)
	alerts = m.Poll()
	require.Len(t, alerts, 1, "overdue still fires after approaching")
	assert.Equal(t, Overdue, alerts[0].State)
	assert.Empty(t, m.Poll())
	assert.Equal(t, int32(1), atomic.LoadInt32(&overdue))
}

func TestOverdueFiresExactlyOnce(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, err := s.AddLineAnnotation("/a/b.go", 7, "", "fix", models.DeadlineAt(c.Now().Add(-time.Hour)))
	require.NoError(t, err)

	var overdue []Alert
	m := New(s, WithClock(c.Now), OnOverdue(func(a Alert) { overdue = append(overdue, a) }))
	for i := 0; i < 5; i++ {
		m.Poll()
		c.Advance(15 * time.Second)
	}
	require.Len(t, overdue, 1)
	assert.Equal(t, "Line 7 in /a/b.go", overdue[0].Location)
	assert.True(t, m.Notified(Overdue, overdue[0].Key))
}

func TestFarDeadlineAndInvalidSkipped(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, err := s.AddEntry("/a", false, "event", models.TextContent("later"), models.DeadlineAt(c.Now().Add(48*time.Hour)))
	require.NoError(t, err)

	// An unparsable deadline can only arrive from disk.
	var bad models.Deadline
	require.NoError(t, bad.UnmarshalJSON([]byte(`"someday"`)))
	_, err = s.AddEntry("/b", false, "event", models.TextContent("never"), bad)
	require.NoError(t, err)

	m := New(s, WithClock(c.Now))
	assert.Empty(t, m.Poll())
}

func TestDuplicateKeysCheckedOnce(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	dl := models.DeadlineAt(c.Now().Add(-time.Minute))
	_, _ = s.AddEntry("/a", false, "event", models.TextContent("same"), dl)
	_, _ = s.AddEntry("/a", false, "note", models.TextContent("same"), dl)

	m := New(s, WithClock(c.Now))
	assert.Len(t, m.Poll(), 1)
}

func TestChecklistPayloadDeadline(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, err := s.AddEntry("/d", true, "checklist", models.TextContent("Ship"), models.DeadlineAt(c.Now().Add(-time.Second)))
	require.NoError(t, err)

	m := New(s, WithClock(c.Now))
	alerts := m.Poll()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Directory: /d", alerts[0].Location)
}

func TestDisabledSkips(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, _ = s.AddEntry("/a", false, "event", models.TextContent("x"), models.DeadlineAt(c.Now().Add(-time.Minute)))

	var on atomic.Bool
	m := New(s, WithClock(c.Now), WithEnabled(on.Load))
	assert.Empty(t, m.Poll())

	on.Store(true)
	assert.Len(t, m.Poll(), 1, "disabled polls do not consume the alert")
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStore(t, c)
	_, _ = s.AddEntry("/a", false, "event", models.TextContent("x"), models.DeadlineAt(c.Now().Add(-time.Minute)))

	fired := make(chan Alert, 1)
	m := New(s, WithClock(c.Now), WithInterval(10*time.Millisecond), OnOverdue(func(a Alert) { fired <- a }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("overdue not raised")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
