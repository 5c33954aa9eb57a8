// Package store owns the in-memory annotation tree and its JSON document.
//
// Every mutation runs to completion under the write lock, including the
// synchronous whole-document save, before control returns to the caller.
// Change listeners run after the lock is released.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/protasker/internal/apperr"
	"github.com/starford/protasker/internal/category"
	"github.com/starford/protasker/internal/checksum"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/storage"
)

// Op names a kind of store change.
type Op string

const (
	OpAdd       Op = "add"
	OpEdit      Op = "edit"
	OpDelete    Op = "delete"
	OpClear     Op = "clear"
	OpReload    Op = "reload"
	OpChecklist Op = "checklist"
)

// Change describes one applied mutation.
type Change struct {
	Op         Op                `json:"op"`
	Collection models.Collection `json:"collection,omitempty"`
	Path       string            `json:"path,omitempty"`
	ID         int64             `json:"id,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRegistry sets the category registry source. It is called on every
// operation that needs categories, so configuration changes apply at once.
func WithRegistry(fn func() category.Registry) Option {
	return func(s *Store) { s.registry = fn }
}

// Store is the annotation store. Safe for concurrent use.
type Store struct {
	fs   storage.Provider
	name string

	log      *slog.Logger
	now      func() time.Time
	registry func() category.Registry

	mu      sync.RWMutex
	root    *models.Root
	lastID  int64
	lastSum string

	lmu       sync.Mutex
	listeners []func(Change)
}

// Open loads the document name from fs. Load never fails: a missing or
// unreadable document yields an empty store.
func Open(fs storage.Provider, name string, opts ...Option) *Store {
	s := &Store{
		fs:       fs,
		name:     name,
		log:      slog.Default(),
		now:      time.Now,
		registry: func() category.Registry { return category.Registry{} },
	}
	for _, o := range opts {
		o(s)
	}
	root, sum := s.load()
	s.root = root
	s.lastSum = sum
	s.lastID = root.MaxID()
	return s
}

// load reads and decodes the document, falling back to an empty root.
// A document that fails to decode is moved aside first. Only Open uses this
// fallback; Reload keeps the live tree instead.
func (s *Store) load() (*models.Root, string) {
	data, err := s.fs.Read(s.name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("store: read failed, using empty store",
				slog.String("file", s.name), slog.String("error", err.Error()))
		}
		return models.NewRoot(), ""
	}
	root, err := decode(data)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.name, s.now().Unix())
		s.log.Warn("store: document is corrupt, using empty store",
			slog.String("file", s.name), slog.String("moved_to", aside), slog.String("error", err.Error()))
		if mvErr := s.fs.Move(s.name, aside); mvErr != nil {
			s.log.Error("store: quarantine corrupt document", slog.String("error", mvErr.Error()))
		}
		return models.NewRoot(), ""
	}
	return root, checksum.Sum(data)
}

func decode(data []byte) (*models.Root, error) {
	var root models.Root
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	root.Normalize()
	return &root, nil
}

// saveLocked serializes the whole tree and overwrites the document.
// Caller holds s.mu for writing.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.root, "", "  ")
	if err != nil {
		s.log.Error("store: encode", slog.String("error", err.Error()))
		return fmt.Errorf("store: encode: %v: %w", err, apperr.ErrPersistence)
	}
	if err := s.fs.Write(s.name, data); err != nil {
		s.log.Error("store: save", slog.String("file", s.name), slog.String("error", err.Error()))
		return fmt.Errorf("store: save: %v: %w", err, apperr.ErrPersistence)
	}
	s.lastSum = checksum.Sum(data)
	return nil
}

// Save persists the current tree. It is called implicitly by every mutation.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// mutate applies fn under the write lock, saves, then notifies listeners.
// When fn fails nothing is saved or announced. A save failure leaves the
// in-memory change applied and still announces it.
func (s *Store) mutate(fn func(r *models.Root) (Change, error)) error {
	s.mu.Lock()
	ch, err := fn(s.root)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	saveErr := s.saveLocked()
	s.mu.Unlock()

	s.log.Debug("store: changed", slog.String("op", string(ch.Op)),
		slog.String("anchor", ch.Path), slog.Int64("id", ch.ID))
	s.emit(ch)
	return saveErr
}

// nextID returns a fresh millisecond id, strictly greater than any issued or
// loaded before. Caller holds s.mu for writing.
func (s *Store) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// OnChange registers fn to be called after every applied mutation and after
// a reload from disk. Listeners run outside the store lock. A mutation whose
// save failed (ErrPersistence) is still announced, since the in-memory tree
// has changed; the mutating call returns the error.
func (s *Store) OnChange(fn func(Change)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) emit(ch Change) {
	s.lmu.Lock()
	ls := make([]func(Change), len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()
	for _, fn := range ls {
		fn(ch)
	}
}

// Reload re-reads the document from disk and replaces the in-memory tree.
// It reports false when the on-disk content matches the last save, which is
// how self-writes are told apart from external edits. A missing or
// undecodable document (deleted, half-written, bad hand edit) leaves the
// live tree untouched; the next save rewrites the file from it.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	data, err := s.fs.Read(s.name)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Unlock()
		s.log.Warn("store: document missing on reload, keeping current tree", slog.String("file", s.name))
		return false, nil
	}
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("store: reload: %v: %w", err, apperr.ErrPersistence)
	}
	if checksum.Matches(data, s.lastSum) {
		s.mu.Unlock()
		return false, nil
	}
	root, err := decode(data)
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("store: reload skipped, document does not decode",
			slog.String("file", s.name), slog.String("error", err.Error()))
		return false, fmt.Errorf("store: reload: %v: %w", err, apperr.ErrPersistence)
	}
	s.root = root
	s.lastSum = checksum.Sum(data)
	if max := root.MaxID(); max > s.lastID {
		s.lastID = max
	}
	s.mu.Unlock()

	attrs := []any{slog.String("file", s.name)}
	if mt, err := s.fs.ModTime(s.name); err == nil {
		attrs = append(attrs, slog.Time("modified", mt))
	}
	s.log.Info("store: reloaded from disk", attrs...)
	s.emit(Change{Op: OpReload})
	return true, nil
}

// Checksum returns the SHA-256 of the document as last loaded or saved.
func (s *Store) Checksum() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSum
}

// Location returns the absolute path of the document.
func (s *Store) Location() (string, error) {
	return s.fs.Abs(s.name)
}

// Registry returns the current category registry.
func (s *Store) Registry() category.Registry {
	return s.registry()
}

// View runs fn with read access to the tree. fn must not modify or retain r.
func (s *Store) View(fn func(r *models.Root)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.root)
}
