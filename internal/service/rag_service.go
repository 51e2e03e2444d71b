package service

import (
	"context"
	"errors"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

type RAGService struct {
	retriever   *Retriever
	composer    *AnswerComposer
	defaultTopK int
	maxTopK     int
}

func NewRAGService(retriever *Retriever, composer *AnswerComposer, defaultTopK, maxTopK int) *RAGService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK
	}
	return &RAGService{
		retriever:   retriever,
		composer:    composer,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// Answer retrieves and composes. topK of zero means the configured default;
// larger values are capped.
func (s *RAGService) Answer(ctx context.Context, question string, topK int) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.Wrap(appErr.StageValidate, "", appErr.ErrInvalid, errors.New("question is required"))
	}
	if topK < 0 {
		return nil, appErr.Wrap(appErr.StageValidate, question, appErr.ErrInvalid, errors.New("top_k must not be negative"))
	}
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("question", question), zap.Int("top_k", topK))
	ranked, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		logger.Error("retrieve failed", zap.Error(err))
		return nil, err
	}
	answer, err := s.composer.Compose(ctx, question, ranked)
	if err != nil {
		logger.Error("compose answer failed", zap.Error(err))
		return nil, err
	}
	logger.Info("question answered", zap.Int("candidates", len(ranked)), zap.Int("sources", len(answer.Sources)))
	return answer, nil
}
