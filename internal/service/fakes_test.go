package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

func vectorFor(text string) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[0] = float32(len([]rune(text)))
	v[1] = 1
	return v
}

// scriptedEmbedder answers with vectorFor unless fail says otherwise.
type scriptedEmbedder struct {
	mu    sync.Mutex
	calls int
	sizes []int
	fail  func(call int, texts []string) error
	dim   int
}

func (e *scriptedEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.sizes = append(e.sizes, len(texts))
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.fail != nil {
		if err := e.fail(call, texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := vectorFor(text)
		if e.dim > 0 {
			v = v[:e.dim]
		}
		out[i] = v
	}
	return out, nil
}

func (e *scriptedEmbedder) ModelName() string { return "fake-embed" }

func (e *scriptedEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type recordingGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// memStore is an in-memory ChunkStore.
type memStore struct {
	mu           sync.Mutex
	sets         map[string][]model.Chunk
	nextID       int64
	replaceCalls int
	replaceErr   error
	queryResult  []model.ScoredChunk
	lastTopK     int
	replaceDelay time.Duration
	inflight     int32
	maxInflight  int32
}

func newMemStore() *memStore {
	return &memStore{sets: map[string][]model.Chunk{}}
}

func (m *memStore) Replace(ctx context.Context, docID string, chunks []model.Chunk) error {
	n := atomic.AddInt32(&m.inflight, 1)
	defer atomic.AddInt32(&m.inflight, -1)
	for {
		cur := atomic.LoadInt32(&m.maxInflight)
		if n <= cur || atomic.CompareAndSwapInt32(&m.maxInflight, cur, n) {
			break
		}
	}
	if m.replaceDelay > 0 {
		time.Sleep(m.replaceDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	set := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		m.nextID++
		c.ID = m.nextID
		set[i] = c
	}
	m.sets[docID] = set
	return nil
}

func (m *memStore) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTopK = topK
	if len(m.queryResult) > topK {
		return m.queryResult[:topK], nil
	}
	return m.queryResult, nil
}

func (m *memStore) Stats(ctx context.Context) (*model.ChunkStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.ChunkStats{Documents: []model.DocumentStat{}}
	ids := make([]string, 0, len(m.sets))
	for id := range m.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := m.statLocked(id)
		stats.Documents = append(stats.Documents, st)
		stats.TotalChunks += st.Chunks
		stats.TotalDegraded += st.DegradedChunks
	}
	stats.TotalDocuments = len(stats.Documents)
	return stats, nil
}

func (m *memStore) statLocked(docID string) model.DocumentStat {
	st := model.DocumentStat{DocID: docID}
	for _, c := range m.sets[docID] {
		st.Chunks++
		if c.EmbeddingState == model.EmbeddingStateDegraded {
			st.DegradedChunks++
		}
	}
	return st
}

func (m *memStore) DocumentStats(ctx context.Context, docID string) (*model.DocumentStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sets[docID]) == 0 {
		return nil, appErr.ErrNotFound
	}
	st := m.statLocked(docID)
	return &st, nil
}

func (m *memStore) Delete(ctx context.Context, docID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.sets[docID]))
	delete(m.sets, docID)
	return n, nil
}

func (m *memStore) ListDegraded(ctx context.Context, limit int) ([]model.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Chunk
	for _, set := range m.sets {
		for _, c := range set {
			if c.EmbeddingState == model.EmbeddingStateDegraded && len(out) < limit {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for docID, set := range m.sets {
		for i := range set {
			if set[i].ID == id && set[i].EmbeddingState == model.EmbeddingStateDegraded {
				m.sets[docID][i].Embedding = vector
				m.sets[docID][i].EmbeddingState = model.EmbeddingStateOK
				return nil
			}
		}
	}
	return appErr.ErrNotFound
}

func (m *memStore) chunks(docID string) []model.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Chunk(nil), m.sets[docID]...)
}
