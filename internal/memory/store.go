// Package memory holds scraped text fragments with their embeddings and
// answers nearest-neighbour queries by cosine similarity.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/run-bigpig/watchdog/internal/logger"
)

var log = logger.New("memory")

var (
	ErrEmptyStore         = goerr.New("memory store is empty")
	ErrEmbeddingMismatch  = goerr.New("embedder returned unexpected number of vectors")
	ErrDimensionsMismatch = goerr.New("embedding dimensionality changed")
)

// Embedder turns texts into vectors, one per input, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MemoryRecord a stored fragment
type MemoryRecord struct {
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"capturedAt"`
	Embedding  []float32 `json:"-"`
}

// Store append-only fragment store. Ingest is exclusive; queries may run
// concurrently with each other.
type Store struct {
	mu       sync.RWMutex
	embedder Embedder
	records  []MemoryRecord
	vectors  [][]float64
	dims     int
	onChange func(n int)
	now      func() time.Time
}

// Option store option
type Option func(*Store)

// WithSizeObserver is called with the record count after every ingest
func WithSizeObserver(fn func(n int)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithClock overrides the capture clock
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store
func NewStore(embedder Embedder, opts ...Option) *Store {
	s := &Store{embedder: embedder, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest embeds fragments in one batch and appends them in order. Empty input
// stores nothing and does not call the embedder.
func (s *Store) Ingest(ctx context.Context, fragments []string) (int, error) {
	if len(fragments) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, fragments)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to embed fragments", goerr.V("count", len(fragments)))
	}
	if len(vectors) != len(fragments) {
		return 0, goerr.Wrap(ErrEmbeddingMismatch, "cannot ingest",
			goerr.V("fragments", len(fragments)), goerr.V("vectors", len(vectors)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	if dims == 0 {
		dims = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != dims {
			return 0, goerr.Wrap(ErrDimensionsMismatch, "cannot ingest",
				goerr.V("expected", dims), goerr.V("got", len(v)))
		}
	}

	capturedAt := s.now()
	for i, text := range fragments {
		s.records = append(s.records, MemoryRecord{Text: text, CapturedAt: capturedAt, Embedding: vectors[i]})
		s.vectors = append(s.vectors, toFloat64(vectors[i]))
	}
	s.dims = dims

	log.Debug("ingested %d fragments, total %d", len(fragments), len(s.records))
	if s.onChange != nil {
		s.onChange(len(s.records))
	}
	return len(fragments), nil
}

// Query returns the best matching record and its score. Ties keep the
// earliest insertion.
func (s *Store) Query(ctx context.Context, text string) (MemoryRecord, float64, error) {
	if s.Len() == 0 {
		return MemoryRecord{}, 0, ErrEmptyStore
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return MemoryRecord{}, 0, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 {
		return MemoryRecord{}, 0, goerr.Wrap(ErrEmbeddingMismatch, "cannot query", goerr.V("vectors", len(vectors)))
	}
	q := toFloat64(vectors[0])

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(q) != s.dims {
		return MemoryRecord{}, 0, goerr.Wrap(ErrDimensionsMismatch, "cannot query",
			goerr.V("expected", s.dims), goerr.V("got", len(q)))
	}

	best := -1
	bestScore := 0.0
	for i, v := range s.vectors {
		score := CosineSimilarity(q, v)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return s.records[best], bestScore, nil
}

// Len number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records snapshot in insertion order
func (s *Store) Records() []MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemoryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// CosineSimilarity dot(a,b)/(|a||b|); 0 when either vector has zero norm or
// lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
