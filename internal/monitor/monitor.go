// Package monitor polls the store for annotations with deadlines and raises
// at most one "approaching" and one "overdue" alert per annotation for the
// life of the Monitor.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/query"
)

// Defaults match the polling cadence and warning window of the editor.
const (
	DefaultInterval = 15 * time.Second
	DefaultWindow   = time.Hour
)

// State is the kind of alert.
type State string

const (
	Approaching State = "approaching"
	Overdue     State = "overdue"
)

// Alert is one raised deadline signal.
type Alert struct {
	State     State          `json:"state"`
	Key       string         `json:"key"`
	Location  string         `json:"location"`
	Deadline  time.Time      `json:"deadline"`
	Remaining time.Duration  `json:"remaining"`
	Target    models.Located `json:"target"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// WithInterval sets the poll cadence for Run.
func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

// WithWindow sets how far ahead a deadline counts as approaching.
func WithWindow(d time.Duration) Option { return func(m *Monitor) { m.window = d } }

// WithEnabled sets the notification switch, consulted on every poll.
func WithEnabled(fn func() bool) Option { return func(m *Monitor) { m.enabled = fn } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.log = l } }

// OnApproaching registers the approaching callback.
func OnApproaching(fn func(Alert)) Option { return func(m *Monitor) { m.onApproaching = fn } }

// OnOverdue registers the overdue callback.
func OnOverdue(fn func(Alert)) Option { return func(m *Monitor) { m.onOverdue = fn } }

// Monitor owns the notified-key sets. They live only in memory.
type Monitor struct {
	src      query.Source
	now      func() time.Time
	interval time.Duration
	window   time.Duration
	enabled  func() bool
	log      *slog.Logger

	onApproaching func(Alert)
	onOverdue     func(Alert)

	polling sync.Mutex

	mu         sync.Mutex
	approached map[string]struct{}
	overdue    map[string]struct{}
}

// New creates a Monitor over src.
func New(src query.Source, opts ...Option) *Monitor {
	m := &Monitor{
		src:        src,
		now:        time.Now,
		interval:   DefaultInterval,
		window:     DefaultWindow,
		enabled:    func() bool { return true },
		log:        slog.Default(),
		approached: make(map[string]struct{}),
		overdue:    make(map[string]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Location renders the place an annotation lives, as used in dedup keys.
func Location(l models.Located) string {
	switch l.Collection {
	case models.Directories:
		return "Directory: " + l.Path
	case models.Lines:
		return fmt.Sprintf("Line %d in %s", l.Line, l.Path)
	default:
		return "File: " + l.Path
	}
}

// Key is the dedup key: location, deadline and content. It deliberately
// ignores the id.
func Key(l models.Located) string {
	return Location(l) + ":" + l.Annotation.EffectiveDeadline().String() + ":" + l.Annotation.Summary()
}

// Poll scans the store once and returns the alerts raised. It returns nil
// without scanning when notifications are disabled or another Poll is in
// progress.
func (m *Monitor) Poll() []Alert {
	if !m.enabled() {
		return nil
	}
	if !m.polling.TryLock() {
		return nil
	}
	defer m.polling.Unlock()

	all, err := query.Filter(m.src, "all", "all")
	if err != nil {
		m.log.Error("monitor: scan", slog.String("error", err.Error()))
		return nil
	}

	now := m.now()
	checked := make(map[string]struct{})
	var alerts []Alert
	for _, l := range all {
		dl := l.Annotation.EffectiveDeadline()
		if !dl.IsSet() {
			continue
		}
		key := Key(l)
		if _, dup := checked[key]; dup {
			continue
		}
		checked[key] = struct{}{}

		at, ok := dl.Time()
		if !ok {
			continue
		}
		diff := at.Sub(now)
		a := Alert{Key: key, Location: Location(l), Deadline: at, Remaining: diff, Target: l}
		switch {
		case diff > 0 && diff < m.window:
			if m.mark(m.approached, key) {
				a.State = Approaching
				alerts = append(alerts, a)
			}
		case diff <= 0:
			if m.mark(m.overdue, key) {
				a.State = Overdue
				alerts = append(alerts, a)
			}
		}
	}

	for _, a := range alerts {
		m.log.Info("monitor: deadline", slog.String("state", string(a.State)), slog.String("key", a.Key))
		switch a.State {
		case Approaching:
			if m.onApproaching != nil {
				m.onApproaching(a)
			}
		case Overdue:
			if m.onOverdue != nil {
				m.onOverdue(a)
			}
		}
	}
	return alerts
}

// mark records key in set and reports whether it was new.
func (m *Monitor) mark(set map[string]struct{}, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}

// Notified reports whether key has raised state before.
func (m *Monitor) Notified(state State, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.approached
	if state == Overdue {
		set = m.overdue
	}
	_, ok := set[key]
	return ok
}

// Run polls immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor: started", slog.Duration("interval", m.interval), slog.Duration("window", m.window))
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Poll()
		}
	}
}
