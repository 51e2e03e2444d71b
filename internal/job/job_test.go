package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/npesaras/wolfie-rag/internal/model"
)

type fakeCache struct {
	cutoff int64
	err    error
}

func (f *fakeCache) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestEmbeddingCacheCleanupJob_Cutoff(t *testing.T) {
	cache := &fakeCache{}
	j := NewEmbeddingCacheCleanupJob(cache, 7)
	now := time.Unix(1_700_000_000, 0)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-7*24*time.Hour).Unix(), cache.cutoff)

	cache.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
}

func TestEmbeddingCacheCleanupJob_DefaultsAndNil(t *testing.T) {
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 0).Run(context.Background()))

	cache := &fakeCache{}
	j := NewEmbeddingCacheCleanupJob(cache, 0)
	now := time.Unix(1_700_000_000, 0)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), cache.cutoff)
}

type fakeReembedder struct {
	limit int
}

func (f *fakeReembedder) ReembedDegraded(ctx context.Context, limit int) (int, error) {
	f.limit = limit
	return 2, nil
}

func TestDegradedReembedJob_PassesBatch(t *testing.T) {
	r := &fakeReembedder{}
	require.NoError(t, NewDegradedReembedJob(r, 10).Run(context.Background()))
	require.Equal(t, 10, r.limit)
	require.NoError(t, NewDegradedReembedJob(r, 0).Run(context.Background()))
	require.Equal(t, 64, r.limit)
}

type fakeFolder struct {
	items []model.FolderIngestItem
}

func (f fakeFolder) IngestAll(ctx context.Context) ([]model.FolderIngestItem, error) {
	return f.items, nil
}

func TestSourceSyncJob_ReportsFailures(t *testing.T) {
	ok := fakeFolder{items: []model.FolderIngestItem{{Filename: "a.txt", Status: model.FolderIngestStatusSuccess}}}
	require.NoError(t, NewSourceSyncJob(ok).Run(context.Background()))

	bad := fakeFolder{items: []model.FolderIngestItem{
		{Filename: "a.txt", Status: model.FolderIngestStatusSuccess},
		{Filename: "b.pdf", Status: model.FolderIngestStatusError, Error: "load: parse failed"},
	}}
	err := NewSourceSyncJob(bad).Run(context.Background())
	require.EqualError(t, err, "1 of 2 files failed to ingest")
}
