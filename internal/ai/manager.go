package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/npesaras/wolfie-rag/internal/config"
)

// BuildEmbedder turns the configured provider list into a single embedder.
// It returns nil when nothing is configured.
func BuildEmbedder(items []config.ProviderConfig) (IEmbedder, error) {
	entries := make([]EmbedderEntry, 0, len(items))
	for idx, item := range items {
		provider, err := newConfiguredProvider(item)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %d: %w", idx, err)
		}
		if strings.TrimSpace(item.Model) == "" {
			return nil, fmt.Errorf("embed provider %d: model is required", idx)
		}
		entries = append(entries, EmbedderEntry{
			Name:     entryName(item),
			Embedder: NewEmbedder(provider, item.Model),
		})
	}
	if len(entries) == 1 {
		return entries[0].Embedder, nil
	}
	return NewGroupEmbedder(entries), nil
}

func BuildGenerator(items []config.ProviderConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(items))
	for idx, item := range items {
		provider, err := newConfiguredProvider(item)
		if err != nil {
			return nil, fmt.Errorf("init generate provider %d: %w", idx, err)
		}
		if strings.TrimSpace(item.Model) == "" {
			return nil, fmt.Errorf("generate provider %d: model is required", idx)
		}
		entries = append(entries, GeneratorEntry{
			Name:      entryName(item),
			Generator: NewGenerator(provider, item.Model),
		})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return NewGroupGenerator(entries), nil
}

func newConfiguredProvider(item config.ProviderConfig) (IProvider, error) {
	args := item.Data
	if args == nil {
		args = map[string]interface{}{}
	}
	return NewProvider(item.Provider, args)
}

func entryName(item config.ProviderConfig) string {
	if name := strings.TrimSpace(item.Name); name != "" {
		return name
	}
	return item.Provider + ":" + item.Model
}

// WrapTimeoutToGenerator bounds every Generate call. A non-positive timeout
// leaves g untouched.
func WrapTimeoutToGenerator(g IGenerator, timeout time.Duration) IGenerator {
	if g == nil || timeout <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

type timeoutGenerator struct {
	next    IGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt)
}
