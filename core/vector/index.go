package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/xlog"

	"github.com/ogsenpai/mind/core/memory"
)

// DefaultDimension matches the common embedding width of OpenAI-compatible
// backends.
const DefaultDimension = 1536

// ErrEmbedding wraps failures of the embedding capability.
var ErrEmbedding = errors.New("embedding failed")

// DimensionError reports a vector of unexpected length. It is always a
// contract violation, never coerced.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d want %d", e.Got, e.Want)
}

// Embedder turns text into a fixed-length vector. Implementations must
// produce the same vector for the same input within a process.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Record associates a stored vector with the memory entry it was derived
// from. The back-reference does not own the entry; it may go stale.
type Record struct {
	ID        string
	Vector    []float32
	MemoryID  string
	Kind      memory.Kind
	CreatedAt time.Time
}

// Index is an in-process similarity index over memory entries. Safe for
// concurrent use.
type Index struct {
	mu        sync.RWMutex
	records   map[string]Record
	dimension int
	embedder  Embedder
	now       func() time.Time
}

type Option func(*Index)

// WithDimension overrides the enforced vector width.
func WithDimension(d int) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.dimension = d
		}
	}
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) {
		if now != nil {
			ix.now = now
		}
	}
}

func NewIndex(embedder Embedder, opts ...Option) *Index {
	ix := &Index{
		records:   make(map[string]Record),
		dimension: DefaultDimension,
		embedder:  embedder,
		now:       time.Now,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Add embeds the entry's textual content and stores a record for it.
// Returns the record id.
func (ix *Index) Add(ctx context.Context, entry *memory.Entry) (string, error) {
	vec, err := ix.embed(ctx, entry.Content.Text())
	if err != nil {
		return "", err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec := Record{
		ID:        uuid.New().String(),
		Vector:    vec,
		MemoryID:  entry.ID,
		Kind:      entry.Kind,
		CreatedAt: ix.now(),
	}
	ix.records[rec.ID] = rec

	xlog.Debug("Vector stored", "vector", rec.ID, "memory", entry.ID)
	return rec.ID, nil
}

// FindSimilar embeds the query and returns up to limit memory ids ranked by
// cosine similarity, highest first. Zero-magnitude vectors compare as
// similarity 0 rather than NaN.
func (ix *Index) FindSimilar(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	qv, err := ix.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		memoryID   string
		similarity float64
		createdAt  time.Time
	}
	results := make([]scored, 0, len(ix.records))
	for _, rec := range ix.records {
		results = append(results, scored{
			memoryID:   rec.MemoryID,
			similarity: cosineSimilarity(qv, rec.Vector),
			createdAt:  rec.CreatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].similarity != results[j].similarity {
			return results[i].similarity > results[j].similarity
		}
		return results[i].createdAt.After(results[j].createdAt)
	})

	if limit > len(results) {
		limit = len(results)
	}
	ids := make([]string, 0, limit)
	for _, r := range results[:limit] {
		ids = append(ids, r.memoryID)
	}
	return ids, nil
}

// Remove deletes a vector record. Returns false if the id is absent.
func (ix *Index) Remove(recordID string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.records[recordID]; !ok {
		return false
	}
	delete(ix.records, recordID)
	return true
}

// Clear drops all records.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.records = make(map[string]Record)
	xlog.Info("Vector index cleared")
}

// Len returns the number of stored records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vec) != ix.dimension {
		return nil, &DimensionError{Got: len(vec), Want: ix.dimension}
	}
	return vec, nil
}

// cosineSimilarity assumes both vectors have the index dimension. A
// zero-magnitude operand yields 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
