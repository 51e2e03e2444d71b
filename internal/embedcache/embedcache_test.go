package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npesaras/wolfie-rag/internal/model"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
	dim    int
}

// vec is a full-size vector tagged by its first value.
func vec(tag float32, dim int) []float32 {
	v := make([]float32, dim)
	v[0] = tag
	return v
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	dim := c.dim
	if dim == 0 {
		dim = model.EmbeddingDimension
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = vec(float32(len(text)), dim)
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "m" }

func tagged(tag float32) []float32 {
	return vec(tag, model.EmbeddingDimension)
}

type memStore struct {
	items   map[string][]float32
	lookups int
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{items: map[string][]float32{}}
}

func (m *memStore) GetMany(ctx context.Context, modelName, taskType string, hashes []string) (map[string][]float32, error) {
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := map[string][]float32{}
	for _, h := range hashes {
		if v, ok := m.items[modelName+taskType+h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLRUEmbedderForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"a", "bb"}, "T")
	require.NoError(t, err)
	second, err := e.Embed(ctx, []string{"bb", "ccc", "a"}, "T")
	require.NoError(t, err)

	assert.Equal(t, [][]float32{tagged(1), tagged(2)}, first)
	assert.Equal(t, [][]float32{tagged(2), tagged(3), tagged(1)}, second)
	require.Len(t, inner.inputs, 2)
	assert.Equal(t, []string{"ccc"}, inner.inputs[1])
}

func TestLRUEmbedderTaskTypeIsPartOfKey(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	_, _ = e.Embed(context.Background(), []string{"a"}, "DOC")
	_, _ = e.Embed(context.Background(), []string{"a"}, "QUERY")
	assert.Equal(t, 2, inner.calls)
}

func TestLRUEmbedderDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	assert.Same(t, inner, WrapLruCacheToEmbedder(inner, 0, time.Minute))
}

func TestDBEmbedderUsesStore(t *testing.T) {
	inner := &countingEmbedder{}
	store := newMemStore()
	e := WrapDBCacheToEmbedder(inner, store)
	ctx := context.Background()

	_, err := e.Embed(ctx, []string{"x", "yy"}, "T")
	require.NoError(t, err)
	out, err := e.Embed(ctx, []string{"yy", "x"}, "T")
	require.NoError(t, err)
	assert.Equal(t, [][]float32{tagged(2), tagged(1)}, out)
	assert.Equal(t, 1, inner.calls)
}

func TestDBEmbedderLookupFailureFallsThrough(t *testing.T) {
	inner := &countingEmbedder{}
	store := newMemStore()
	store.getErr = errors.New("db down")
	e := WrapDBCacheToEmbedder(inner, store)

	out, err := e.Embed(context.Background(), []string{"abc"}, "T")
	require.NoError(t, err)
	assert.Equal(t, [][]float32{tagged(3)}, out)
}

func TestDBEmbedderPropagatesProviderError(t *testing.T) {
	want := errors.New("provider")
	e := WrapDBCacheToEmbedder(&countingEmbedder{err: want}, newMemStore())
	_, err := e.Embed(context.Background(), []string{"a"}, "T")
	assert.ErrorIs(t, err, want)
}

func TestLRUEmbedderSkipsWrongDimension(t *testing.T) {
	inner := &countingEmbedder{dim: 3072}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	out, err := e.Embed(ctx, []string{"a"}, "T")
	require.NoError(t, err)
	require.Len(t, out[0], 3072)
	_, err = e.Embed(ctx, []string{"a"}, "T")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestDBEmbedderSkipsWrongDimension(t *testing.T) {
	inner := &countingEmbedder{dim: 3072}
	store := newMemStore()
	e := WrapDBCacheToEmbedder(inner, store)
	ctx := context.Background()

	_, err := e.Embed(ctx, []string{"a"}, "T")
	require.NoError(t, err)
	assert.Empty(t, store.items)

	store.items["mT"+contentHash("b")] = []float32{9}
	inner.dim = 0
	out, err := e.Embed(ctx, []string{"b"}, "T")
	require.NoError(t, err)
	assert.Equal(t, [][]float32{tagged(1)}, out)
	assert.Equal(t, 2, inner.calls)
}
