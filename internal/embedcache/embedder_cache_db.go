package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/ai"
	"github.com/npesaras/wolfie-rag/internal/model"
)

// Store is the persistent side of the cache; repo.EmbeddingCacheRepo
// implements it.
type Store interface {
	GetMany(ctx context.Context, modelName, taskType string, hashes []string) (map[string][]float32, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

// Embed serves what it can from the store and forwards only the misses.
// Lookup and save failures never fail the call.
func (d *dbEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	modelName := normalizeModel(d.next.ModelName())
	hashes := make([]string, len(texts))
	for i, text := range texts {
		hashes[i] = contentHash(text)
	}
	cached, err := d.store.GetMany(ctx, modelName, taskType, uniqueStrings(hashes))
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
		cached = nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, h := range hashes {
		if v, ok := cached[h]; ok && cacheable(v) {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("task_type", taskType), zap.Int("count", len(texts)))
		return out, nil
	}
	res, err := d.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return res, nil
	}
	now := time.Now().Unix()
	for j, v := range res {
		i := missIdx[j]
		out[i] = v
		if !cacheable(v) {
			continue
		}
		if err := d.store.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: hashes[i],
			Embedding:   v,
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

// cacheable rejects vectors the chunk store could not hold, so a misconfigured
// provider cannot poison later lookups.
func cacheable(v []float32) bool {
	return len(v) == model.EmbeddingDimension
}

func contentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

func normalizeModel(modelName string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return "unknown"
	}
	return modelName
}

func buildCacheKey(modelName, taskType, text string) string {
	return "embed:" + normalizeModel(modelName) + ":" + taskType + ":" + contentHash(text)
}

func uniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
