// File: internal/profile/store.go

// Package profile holds the live extraction profile together with a baseline
// snapshot of its last persisted form, and derives the dirty flag from them.
package profile

import (
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// equalOpts treats a nil extractor slice and an empty one as the same value.
var equalOpts = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports whether two profiles are structurally equal. Extractor order
// is significant.
func Equal(a, b schemas.Profile) bool {
	return cmp.Equal(a, b, equalOpts...)
}

// Diff returns a human readable diff between two profiles, empty when equal.
func Diff(a, b schemas.Profile) string {
	return cmp.Diff(a, b, equalOpts...)
}

// Store tracks the live profile and its baseline snapshot.
type Store struct {
	logger *zap.Logger

	mu       sync.RWMutex
	current  schemas.Profile
	baseline schemas.Profile
	dirty    bool

	onDirty func(bool)
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the extractor id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns a store holding the empty profile, already baselined.
func NewStore(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	empty := schemas.NewProfile()
	s := &Store{
		logger:   logger.Named("profile_store"),
		current:  empty,
		baseline: empty.Clone(),
		newID:    newExtractorID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newExtractorID returns a time-ordered UUIDv7, falling back to v4 if the
// clock source fails.
func newExtractorID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// OnDirtyChange registers fn to be called whenever the dirty flag flips.
// The callback runs outside the store's lock.
func (s *Store) OnDirtyChange(fn func(dirty bool)) {
	s.mu.Lock()
	s.onDirty = fn
	s.mu.Unlock()
}

// Current returns a deep copy of the live profile.
func (s *Store) Current() schemas.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Baseline returns a deep copy of the baseline snapshot.
func (s *Store) Baseline() schemas.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseline.Clone()
}

// IsDirty reports whether the live profile differs from the baseline.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkBaseline snapshots the live profile as the baseline and clears the
// dirty flag.
func (s *Store) MarkBaseline() {
	s.mutate(func(p *schemas.Profile) error { return nil }, true)
}

// Replace swaps in a whole profile, as done on load.
func (s *Store) Replace(p schemas.Profile) {
	next := p.Clone()
	if next.Extractors == nil {
		next.Extractors = []schemas.Extractor{}
	}
	s.mutate(func(cur *schemas.Profile) error {
		*cur = next
		return nil
	}, false)
}

// Reset replaces the live profile with the empty profile.
func (s *Store) Reset() {
	s.Replace(schemas.NewProfile())
}

// Update applies an arbitrary in-place edit.
func (s *Store) Update(fn func(p *schemas.Profile)) {
	s.mutate(func(p *schemas.Profile) error {
		fn(p)
		return nil
	}, false)
}

func (s *Store) SetTargetURL(u string) {
	s.Update(func(p *schemas.Profile) { p.TargetURL = u })
}

func (s *Store) SetOutputFileName(name string) {
	s.Update(func(p *schemas.Profile) { p.OutputFileName = name })
}

func (s *Store) SetExportFormat(f schemas.ExportFormat) {
	s.Update(func(p *schemas.Profile) { p.ExportFormat = f })
}

func (s *Store) SetDebug(on bool) {
	s.Update(func(p *schemas.Profile) { p.Debug = on })
}

func (s *Store) SetSessionID(id string) {
	s.Update(func(p *schemas.Profile) { p.SessionID = id })
}

// AddExtractor appends a new text-mode extractor with a fresh id and returns it.
func (s *Store) AddExtractor(fieldName, selector string) schemas.Extractor {
	e := schemas.Extractor{
		ID:        s.newID(),
		FieldName: fieldName,
		Selector:  selector,
		Mode:      schemas.ModeText,
	}
	s.Update(func(p *schemas.Profile) { p.Extractors = append(p.Extractors, e) })
	return e
}

// UpdateExtractor edits the extractor with the given id in place.
func (s *Store) UpdateExtractor(id string, fn func(e *schemas.Extractor)) error {
	return s.mutate(func(p *schemas.Profile) error {
		idx := p.ExtractorIndex(id)
		if idx < 0 {
			return fmt.Errorf("extractor %q not found", id)
		}
		fn(&p.Extractors[idx])
		// The id is the extractor's identity and is not editable.
		p.Extractors[idx].ID = id
		return nil
	}, false)
}

// RemoveExtractor deletes the extractor with the given id.
func (s *Store) RemoveExtractor(id string) error {
	return s.mutate(func(p *schemas.Profile) error {
		idx := p.ExtractorIndex(id)
		if idx < 0 {
			return fmt.Errorf("extractor %q not found", id)
		}
		p.Extractors = append(p.Extractors[:idx], p.Extractors[idx+1:]...)
		return nil
	}, false)
}

// MoveExtractor moves the extractor at index from to index to.
func (s *Store) MoveExtractor(from, to int) error {
	return s.mutate(func(p *schemas.Profile) error {
		n := len(p.Extractors)
		if from < 0 || from >= n || to < 0 || to >= n {
			return fmt.Errorf("move %d -> %d out of range for %d extractors", from, to, n)
		}
		if from == to {
			return nil
		}
		e := p.Extractors[from]
		p.Extractors = append(p.Extractors[:from], p.Extractors[from+1:]...)
		p.Extractors = append(p.Extractors[:to], append([]schemas.Extractor{e}, p.Extractors[to:]...)...)
		return nil
	}, false)
}

// mutate applies fn to a working copy, commits it when fn succeeds, optionally
// rebaselines, recomputes the dirty flag and notifies on a flip.
func (s *Store) mutate(fn func(p *schemas.Profile) error, rebaseline bool) error {
	s.mu.Lock()
	working := s.current.Clone()
	if err := fn(&working); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = working
	if rebaseline {
		s.baseline = working.Clone()
	}
	wasDirty := s.dirty
	s.dirty = !Equal(s.current, s.baseline)
	changed := wasDirty != s.dirty
	notify := s.onDirty
	dirty := s.dirty
	s.mu.Unlock()

	if changed {
		s.logger.Debug("Dirty flag changed", zap.Bool("dirty", dirty))
		if notify != nil {
			notify(dirty)
		}
	}
	return nil
}
