package service

import (
	"context"

	"github.com/npesaras/wolfie-rag/internal/model"
)

// ChunkStore persists chunk sets; repo.ChunkRepo is the postgres implementation.
type ChunkStore interface {
	Replace(ctx context.Context, docID string, chunks []model.Chunk) error
	Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error)
	Stats(ctx context.Context) (*model.ChunkStats, error)
	DocumentStats(ctx context.Context, docID string) (*model.DocumentStat, error)
	Delete(ctx context.Context, docID string) (int64, error)
	ListDegraded(ctx context.Context, limit int) ([]model.Chunk, error)
	UpdateEmbedding(ctx context.Context, id int64, vector []float32) error
}

type DocumentLoader interface {
	Load(ctx context.Context, data []byte, filename string) (string, error)
	Supports(filename string) bool
}

type TextSplitter interface {
	Split(text string) []string
}
