package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/npesaras/wolfie-rag/internal/ai"
	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

const NoInformationAnswer = "I don't have enough information to answer this question."

const answerPromptTemplate = `You are a helpful assistant that answers questions based on the provided context.

Context:
%s

Question: %s

Instructions:
- Answer the question using only information from the context above
- If the context doesn't contain enough information, say so
- Be concise and accurate
- Reference specific sources using [1], [2], etc. when applicable

Answer:`

type AnswerComposer struct {
	generator    ai.IGenerator
	threshold    float64
	previewChars int
}

func NewAnswerComposer(generator ai.IGenerator, threshold float64, previewChars int) *AnswerComposer {
	if previewChars <= 0 {
		previewChars = 200
	}
	return &AnswerComposer{generator: generator, threshold: threshold, previewChars: previewChars}
}

// Compose gates ranked chunks on the similarity threshold and asks the
// generator for a cited answer. With nothing above the threshold it returns
// the fixed no-information answer without calling the generator.
func (c *AnswerComposer) Compose(ctx context.Context, question string, ranked []model.ScoredChunk) (*model.Answer, error) {
	relevant := make([]model.ScoredChunk, 0, len(ranked))
	for _, item := range ranked {
		if item.Similarity >= c.threshold {
			relevant = append(relevant, item)
		}
	}
	if len(relevant) == 0 {
		return &model.Answer{Answer: NoInformationAnswer, Sources: []model.Source{}}, nil
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Similarity > relevant[j].Similarity
	})

	blocks := make([]string, 0, len(relevant))
	sources := make([]model.Source, 0, len(relevant))
	for i, item := range relevant {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", i+1, item.Chunk.Content))
		sources = append(sources, model.Source{
			DocID:      item.Chunk.DocID,
			ChunkIndex: item.Chunk.ChunkIndex,
			Preview:    preview(item.Chunk.Content, c.previewChars),
			Similarity: item.Similarity,
		})
	}
	if c.generator == nil {
		return nil, appErr.Wrap(appErr.StageGenerate, question, appErr.ErrGeneration, ai.ErrUnavailable)
	}
	prompt := BuildAnswerPrompt(strings.Join(blocks, "\n\n"), question)
	answer, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageGenerate, question, appErr.ErrGeneration, err)
	}
	return &model.Answer{Answer: answer, Sources: sources}, nil
}

func BuildAnswerPrompt(contextText, question string) string {
	return fmt.Sprintf(answerPromptTemplate, contextText, question)
}

func preview(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
