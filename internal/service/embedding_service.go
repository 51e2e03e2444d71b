package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/ai"
	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

type EmbeddingOptions struct {
	BatchSize      int
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

type EmbeddingService struct {
	embedder ai.IEmbedder
	opts     EmbeddingOptions
}

func NewEmbeddingService(embedder ai.IEmbedder, opts EmbeddingOptions) *EmbeddingService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	return &EmbeddingService{embedder: embedder, opts: opts}
}

func (s *EmbeddingService) ModelName() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.ModelName()
}

// EmbedAll returns exactly one embedding per text, in input order. A batch
// that fails every attempt is retried element by element and elements that
// still fail get a degraded placeholder. Only cancellation of ctx (or a
// missing embedder) is reported as an error.
func (s *EmbeddingService) EmbedAll(ctx context.Context, texts []string) ([]model.Embedding, error) {
	if s.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx)
	out := make([]model.Embedding, 0, len(texts))
	for start, batchNo := 0, 0; start < len(texts); start, batchNo = start+s.opts.BatchSize, batchNo+1 {
		end := start + s.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vectors, err := s.embedWithRetry(ctx, batch, ai.TaskRetrievalDocument)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			for _, v := range vectors {
				out = append(out, model.Embedding{Vector: v, State: model.EmbeddingStateOK})
			}
			logger.Debug("embedded batch", zap.Int("batch", batchNo), zap.Int("size", len(batch)))
			continue
		}
		logger.Warn("embedding batch failed, falling back to per-item calls",
			zap.Int("batch", batchNo),
			zap.Int("size", len(batch)),
			zap.Int("attempts", s.opts.MaxAttempts),
			zap.Error(err),
		)
		for i, text := range batch {
			vector, err := s.embedOnce(ctx, []string{text}, ai.TaskRetrievalDocument)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err != nil {
				logger.Warn("embedding degraded",
					zap.Int("batch", batchNo),
					zap.Int("element", start+i),
					zap.Error(err),
				)
				out = append(out, model.DegradedEmbedding())
				continue
			}
			out = append(out, model.Embedding{Vector: vector[0], State: model.EmbeddingStateOK})
		}
	}
	return out, nil
}

// EmbedQuery runs the same retry loop for a single text but never degrades.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	vectors, err := s.embedWithRetry(ctx, []string{text}, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrEmbedding, err)
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embedWithRetry(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var result [][]float32
	attempt := 0
	op := func() error {
		attempt++
		vectors, err := s.embedOnce(ctx, texts, taskType)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logutil.GetLogger(ctx).Debug("embedding attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("size", len(texts)),
				zap.Error(err),
			)
			return err
		}
		result = vectors
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.Backoff), uint64(s.opts.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// embedOnce makes a single bounded call and rejects responses with the wrong
// count or dimension.
func (s *EmbeddingService) embedOnce(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()
	vectors, err := s.embedder.Embed(attemptCtx, texts, taskType)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != model.EmbeddingDimension {
			return nil, fmt.Errorf("embedding %d has %d dims, want %d", i, len(v), model.EmbeddingDimension)
		}
	}
	return vectors, nil
}
