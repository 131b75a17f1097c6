package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/xlog"
)

// ErrNotFound is returned when an entry id does not exist in the store.
var ErrNotFound = errors.New("memory entry not found")

const (
	// DefaultMaxEntries is the hard cap on stored entries.
	DefaultMaxEntries = 10_000

	defaultImportance = 0.5
	defaultSource     = "system"
)

type Option func(*Store)

// WithMaxEntries overrides the eviction cap. Zero or negative keeps the
// default.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the process-wide knowledge store: keyed memory entries with an
// importance-based eviction policy. All methods are safe for concurrent use
// and atomic from the caller's perspective.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
	now        func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*Entry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store creates a new entry and returns its id. Importance defaults to 0.5
// and source to "system" when unset. The eviction cap is enforced afterward.
func (s *Store) Store(kind Kind, content Content, meta Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if meta.Importance == 0 {
		meta.Importance = defaultImportance
	}
	if meta.Source == "" {
		meta.Source = defaultSource
	}
	if meta.Associations == nil {
		meta.Associations = []string{}
	}
	meta.LastAccessedAt = now
	meta.AccessCount = 0

	id := uuid.New().String()
	s.entries[id] = &Entry{
		ID:        id,
		Kind:      kind,
		Content:   content,
		CreatedAt: now,
		Metadata:  meta,
	}

	s.evictLocked()

	xlog.Debug("Memory stored", "kind", kind, "id", id)
	return id
}

// Retrieve returns a copy of the entry and, as a side effect, bumps its
// access bookkeeping. Returns ErrNotFound for unknown ids.
func (s *Store) Retrieve(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	ent.Metadata.LastAccessedAt = s.now()
	ent.Metadata.AccessCount++

	return cloneEntry(ent), nil
}

// Peek returns a copy of the entry without touching access bookkeeping.
func (s *Store) Peek(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(ent), nil
}

// Query returns entries matching all set criteria, sorted by importance
// descending with ties broken by creation time, most recent first.
func (s *Store) Query(q Query) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Entry
	for _, ent := range s.entries {
		if !matches(ent, q) {
			continue
		}
		results = append(results, cloneEntry(ent))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Metadata.Importance != b.Metadata.Importance {
			return a.Metadata.Importance > b.Metadata.Importance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}

func matches(ent *Entry, q Query) bool {
	if q.Kind != "" && ent.Kind != q.Kind {
		return false
	}
	if !q.Start.IsZero() && ent.CreatedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ent.CreatedAt.After(q.End) {
		return false
	}
	if q.MinImportance != nil && ent.Metadata.Importance < *q.MinImportance {
		return false
	}
	if q.MaxImportance != nil && ent.Metadata.Importance > *q.MaxImportance {
		return false
	}
	if q.Context != "" && ent.Metadata.Context != q.Context {
		return false
	}
	if len(q.Associations) > 0 && !anyAssociation(ent.Metadata.Associations, q.Associations) {
		return false
	}
	return true
}

// cloneEntry copies an entry so callers cannot write through to stored
// state via the associations slice.
func cloneEntry(ent *Entry) *Entry {
	out := *ent
	out.Metadata.Associations = append([]string(nil), ent.Metadata.Associations...)
	return &out
}

func anyAssociation(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Update merges the patch into the entry. Returns false if the id is absent.
func (s *Store) Update(id string, patch Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[id]
	if !ok {
		return false
	}
	if patch.Content != nil {
		ent.Content = patch.Content
	}
	if patch.Source != nil {
		ent.Metadata.Source = *patch.Source
	}
	if patch.Importance != nil {
		ent.Metadata.Importance = *patch.Importance
	}
	if patch.Context != nil {
		ent.Metadata.Context = *patch.Context
	}
	if patch.Associations != nil {
		ent.Metadata.Associations = append([]string(nil), patch.Associations...)
	}

	xlog.Debug("Memory updated", "id", id)
	return true
}

// Remove deletes an entry. Returns false if the id is absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	xlog.Debug("Memory removed", "id", id)
	return true
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats summarizes the store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEntries:  len(s.entries),
		EntriesByKind: make(map[Kind]int),
	}
	if len(s.entries) == 0 {
		return stats
	}

	var totalImportance float64
	for _, ent := range s.entries {
		stats.EntriesByKind[ent.Kind]++
		totalImportance += ent.Metadata.Importance
		if stats.OldestEntry.IsZero() || ent.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = ent.CreatedAt
		}
		if ent.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = ent.CreatedAt
		}
	}
	stats.AverageImportance = totalImportance / float64(len(s.entries))
	return stats
}

// evictLocked drops the lowest-importance entries until the store is back at
// the cap. Ties are broken by id so eviction is deterministic.
func (s *Store) evictLocked() {
	excess := len(s.entries) - s.maxEntries
	if excess <= 0 {
		return
	}

	candidates := make([]*Entry, 0, len(s.entries))
	for _, ent := range s.entries {
		candidates = append(candidates, ent)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Metadata.Importance != b.Metadata.Importance {
			return a.Metadata.Importance < b.Metadata.Importance
		}
		return a.ID < b.ID
	})

	for _, ent := range candidates[:excess] {
		delete(s.entries, ent.ID)
	}
	xlog.Debug("Evicted least important memories", "count", excess)
}
