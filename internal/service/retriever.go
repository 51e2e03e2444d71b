package service

import (
	"context"

	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

// Retriever ranks stored chunks against a question. It does not filter;
// relevance gating belongs to AnswerComposer.
type Retriever struct {
	embeddings *EmbeddingService
	store      ChunkStore
}

func NewRetriever(embeddings *EmbeddingService, store ChunkStore) *Retriever {
	return &Retriever{embeddings: embeddings, store: store}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]model.ScoredChunk, error) {
	vector, err := r.embeddings.EmbedQuery(ctx, question)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageRetrieve, question, appErr.ErrEmbedding, err)
	}
	ranked, err := r.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageRetrieve, question, appErr.ErrPersistence, err)
	}
	return ranked, nil
}
