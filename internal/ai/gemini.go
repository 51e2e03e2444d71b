package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/npesaras/wolfie-rag/internal/model"
)

type geminiConfig struct {
	APIKey               string   `json:"api_key"`
	Temperature          *float32 `json:"temperature"`
	OutputDimensionality int32    `json:"output_dimensionality"`
}

type geminiProvider struct {
	client      *genai.Client
	temperature *float32
	dimension   int32
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrUnavailable
	}
	var config *genai.GenerateContentConfig
	if p.temperature != nil {
		temp := *p.temperature
		config = &genai.GenerateContentConfig{Temperature: &temp}
	}
	resp, err := p.client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		config,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	if p.client == nil {
		return nil, ErrUnavailable
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	config := &genai.EmbedContentConfig{}
	if taskType != "" {
		config.TaskType = taskType
	}
	if p.dimension > 0 {
		dim := p.dimension
		config.OutputDimensionality = &dim
	}
	resp, err := p.client.Models.EmbedContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", got, len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, item := range resp.Embeddings {
		if item == nil {
			return nil, fmt.Errorf("gemini returned empty embedding at %d", i)
		}
		out[i] = item.Values
	}
	return out, nil
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	// gemini-embedding models return 3072 values unless asked otherwise.
	if cfg.OutputDimensionality <= 0 {
		cfg.OutputDimensionality = model.EmbeddingDimension
	}
	provider := &geminiProvider{
		temperature: cfg.Temperature,
		dimension:   cfg.OutputDimensionality,
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return provider, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	provider.client = client
	return provider, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}
