package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto fixed axes by keyword
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
	short bool
}

var axes = []string{"fed", "oil", "chip", "earnings"}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()
	if k.fail != nil {
		return nil, k.fail
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v := make([]float32, len(axes))
		lower := strings.ToLower(t)
		for i, a := range axes {
			if strings.Contains(lower, a) {
				v[i] = 1
			}
		}
		out = append(out, v)
	}
	if k.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	var observed int
	store := NewStore(emb, WithSizeObserver(func(n int) { observed = n }))

	n, err := store.Ingest(ctx, []string{
		"Fed holds rates steady",
		"Oil prices surge on supply cut",
		"Chip stocks rally after earnings",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 3, observed)
	assert.Equal(t, 1, emb.calls)

	match, score, err := store.Query(ctx, "what did the fed do")
	require.NoError(t, err)
	assert.Equal(t, "Fed holds rates steady", match.Text)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.False(t, match.CapturedAt.IsZero())

	match, _, err = store.Query(ctx, "oil")
	require.NoError(t, err)
	assert.Equal(t, "Oil prices surge on supply cut", match.Text)
}

func TestQueryEmptyStore(t *testing.T) {
	emb := &keywordEmbedder{}
	store := NewStore(emb)
	_, _, err := store.Query(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmptyStore)
	assert.Equal(t, 0, emb.calls)
}

func TestIngestEmpty(t *testing.T) {
	emb := &keywordEmbedder{}
	store := NewStore(emb)
	n, err := store.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, emb.calls)
}

func TestTieKeepsEarliest(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&keywordEmbedder{})
	_, err := store.Ingest(ctx, []string{"oil one", "oil two"})
	require.NoError(t, err)

	match, _, err := store.Query(ctx, "oil")
	require.NoError(t, err)
	assert.Equal(t, "oil one", match.Text)

	// zero-norm query scores zero everywhere, still returns the first record
	match, score, err := store.Query(ctx, "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "oil one", match.Text)
	assert.Equal(t, 0.0, score)
}

func TestIngestFailuresLeaveStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{fail: errors.New("quota exceeded")}
	store := NewStore(emb)
	_, err := store.Ingest(ctx, []string{"fed"})
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())

	emb.fail = nil
	emb.short = true
	_, err = store.Ingest(ctx, []string{"fed", "oil"})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	assert.Equal(t, 0, store.Len())
}

func TestRecordsSnapshot(t *testing.T) {
	store := NewStore(&keywordEmbedder{})
	_, err := store.Ingest(context.Background(), []string{"a fed", "b oil"})
	require.NoError(t, err)
	recs := store.Records()
	require.Len(t, recs, 2)
	recs[0].Text = "mutated"
	assert.Equal(t, "a fed", store.Records()[0].Text)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-12)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 1}))
}

func TestConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&keywordEmbedder{})
	_, err := store.Ingest(ctx, []string{"fed", "oil", "chip"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Ingest(ctx, []string{"earnings"})
			m, _, err := store.Query(ctx, "chip")
			assert.NoError(t, err)
			assert.Equal(t, "chip", m.Text)
		}()
	}
	wg.Wait()
	assert.Equal(t, 11, store.Len())
}

// letterEmbedder gives each single-letter text its own axis
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestIngestAcrossBatches(t *testing.T) {
	ctx := context.Background()
	store := NewStore(letterEmbedder{})

	_, err := store.Ingest(ctx, []string{"x", "y"})
	require.NoError(t, err)
	_, err = store.Ingest(ctx, []string{"z"})
	require.NoError(t, err)

	match, _, err := store.Query(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "y", match.Text)

	recs := store.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{recs[0].Text, recs[1].Text, recs[2].Text})
}

// sizedEmbedder returns all-ones vectors of a configurable length
type sizedEmbedder struct {
	dims int
}

func (e *sizedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dims)
		for j := range v {
			v[j] = 1
		}
		out[i] = v
	}
	return out, nil
}

func TestQueryRejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	emb := &sizedEmbedder{dims: 3}
	store := NewStore(emb)
	_, err := store.Ingest(ctx, []string{"a", "b"})
	require.NoError(t, err)

	emb.dims = 5
	_, score, err := store.Query(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionsMismatch)
	assert.Equal(t, 0.0, score)

	emb.dims = 3
	match, score, err := store.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", match.Text)
	assert.InDelta(t, 1.0, score, 1e-9)
}
