// Package settings serves the annotation settings that the engine re-reads on
// every relevant operation: configured custom types and the notification
// switch. Values can be swapped at runtime when the config file changes.
package settings

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/protasker/internal/category"
)

var typeName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

var notBuiltin = validation.By(func(v any) error {
	s, _ := v.(string)
	if strings.EqualFold(s, category.TypeLine) || (category.Registry{}).IsType(s) {
		return errors.New("collides with a built-in type")
	}
	return nil
})

// Annotations is the engine-facing slice of configuration.
type Annotations struct {
	CustomTypes   []string `yaml:"custom_types" json:"custom_types"`
	Notifications bool     `yaml:"notifications" json:"notifications"`
}

// Validate implements validation.Validatable.
func (a Annotations) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.CustomTypes, validation.Each(validation.Required, validation.Match(typeName), notBuiltin)),
	)
}

type snapshot struct {
	ann Annotations
	reg category.Registry
}

// Live holds the current Annotations and can reload them.
type Live struct {
	cur  atomic.Pointer[snapshot]
	load func() (Annotations, error)
	log  *slog.Logger
}

// NewLive returns a holder seeded with initial. load, when non-nil, is used
// by Reload.
func NewLive(initial Annotations, load func() (Annotations, error), logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Live{load: load, log: logger}
	l.Set(initial)
	return l
}

// Set replaces the current settings.
func (l *Live) Set(a Annotations) {
	types := make([]string, len(a.CustomTypes))
	copy(types, a.CustomTypes)
	a.CustomTypes = types
	l.cur.Store(&snapshot{ann: a, reg: category.NewRegistry(types)})
}

// Current returns a copy of the current settings.
func (l *Live) Current() Annotations {
	a := l.cur.Load().ann
	a.CustomTypes = append([]string(nil), a.CustomTypes...)
	return a
}

// Registry returns the category registry for the current custom types.
func (l *Live) Registry() category.Registry {
	return l.cur.Load().reg
}

// NotificationsEnabled reports the notification switch.
func (l *Live) NotificationsEnabled() bool {
	return l.cur.Load().ann.Notifications
}

// Reload re-reads settings through the load function. On failure the
// previous settings stay active.
func (l *Live) Reload() error {
	if l.load == nil {
		return nil
	}
	a, err := l.load()
	if err != nil {
		l.log.Warn("settings: reload failed, keeping previous", slog.String("error", err.Error()))
		return err
	}
	l.Set(a)
	l.log.Info("settings: reloaded",
		slog.Int("custom_types", len(a.CustomTypes)),
		slog.Bool("notifications", a.Notifications))
	return nil
}
