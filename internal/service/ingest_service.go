package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/filestore"
	"github.com/npesaras/wolfie-rag/internal/loader"
	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

const maxDocIDLen = 255

type IngestRequest struct {
	DocID           string
	Filename        string
	Data            []byte
	PersistOriginal bool
}

type IngestOptions struct {
	MaxFileSize int64
}

// IngestService turns one uploaded document into its stored chunk set. Runs
// for the same doc_id never overlap within the process; across processes
// the store's replace lock takes over.
type IngestService struct {
	loader     DocumentLoader
	splitter   TextSplitter
	embeddings *EmbeddingService
	store      ChunkStore
	files      filestore.Store
	locks      *docLocker
	opts       IngestOptions
}

func NewIngestService(
	loader DocumentLoader,
	splitter TextSplitter,
	embeddings *EmbeddingService,
	store ChunkStore,
	files filestore.Store,
	opts IngestOptions,
) *IngestService {
	return &IngestService{
		loader:     loader,
		splitter:   splitter,
		embeddings: embeddings,
		store:      store,
		files:      files,
		locks:      newDocLocker(),
		opts:       opts,
	}
}

func (s *IngestService) Supports(filename string) bool {
	return s.loader.Supports(filename)
}

func (s *IngestService) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// Ingest parses, chunks and embeds the document before touching the store,
// then swaps the new chunk set in atomically. A failure at any stage leaves
// the previous chunk set intact. The original upload, when requested, is
// saved after the swap.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*model.IngestResult, error) {
	docID := strings.TrimSpace(req.DocID)
	if err := s.validate(docID, req); err != nil {
		return nil, appErr.Wrap(appErr.StageValidate, docID, nil, err)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID), zap.String("filename", req.Filename))

	unlock, err := s.locks.Lock(ctx, docID)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageValidate, docID, nil, err)
	}
	defer unlock()

	text, err := s.loader.Load(ctx, req.Data, req.Filename)
	if err != nil {
		logger.Error("load document failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StageLoad, docID, nil, err)
	}
	segments := s.splitter.Split(text)
	if len(segments) == 0 {
		return nil, appErr.Wrap(appErr.StageChunk, docID, nil, appErr.ErrEmptyContent)
	}
	logger.Info("document chunked", zap.Int("text_chars", utf8.RuneCountInString(text)), zap.Int("chunks", len(segments)))

	embeddings, err := s.embeddings.EmbedAll(ctx, segments)
	if err != nil {
		logger.Error("embed document failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StageEmbed, docID, appErr.ErrEmbedding, err)
	}
	if len(embeddings) != len(segments) {
		return nil, appErr.Wrap(appErr.StageEmbed, docID, appErr.ErrEmbedding,
			fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(segments)))
	}

	contentType := loader.DetectContentType(req.Data)
	chunks := make([]model.Chunk, len(segments))
	degraded := 0
	for i, segment := range segments {
		if embeddings[i].Degraded() {
			degraded++
		}
		chunks[i] = model.Chunk{
			DocID:          docID,
			ChunkIndex:     i,
			Content:        segment,
			Embedding:      embeddings[i].Vector,
			EmbeddingState: embeddings[i].State,
			Metadata: map[string]interface{}{
				"filename":     req.Filename,
				"size_bytes":   len(req.Data),
				"content_type": contentType,
				"chunk_chars":  utf8.RuneCountInString(segment),
			},
		}
	}
	if err := s.store.Replace(ctx, docID, chunks); err != nil {
		logger.Error("replace chunks failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StagePersist, docID, appErr.ErrPersistence, err)
	}
	// The original is kept only for documents whose chunks were committed.
	// The new set stays live if this save fails; re-ingesting is idempotent.
	if req.PersistOriginal && s.files != nil {
		key := filestore.OriginalKey(docID, req.Filename)
		if err := s.files.Save(ctx, key, bytes.NewReader(req.Data), int64(len(req.Data))); err != nil {
			logger.Error("store original failed", zap.String("key", key), zap.Error(err))
			return nil, appErr.Wrap(appErr.StageStoreOriginal, docID, appErr.ErrPersistence, err)
		}
		logger.Debug("original stored", zap.String("key", key))
	}
	if degraded > 0 {
		logger.Warn("document ingested with degraded embeddings", zap.Int("chunks", len(chunks)), zap.Int("degraded", degraded))
	} else {
		logger.Info("document ingested", zap.Int("chunks", len(chunks)))
	}
	return &model.IngestResult{
		DocID:          docID,
		Filename:       req.Filename,
		Chunks:         len(chunks),
		DegradedChunks: degraded,
	}, nil
}

func (s *IngestService) validate(docID string, req IngestRequest) error {
	if docID == "" {
		return fmt.Errorf("doc_id is required: %w", appErr.ErrInvalid)
	}
	if utf8.RuneCountInString(docID) > maxDocIDLen {
		return fmt.Errorf("doc_id longer than %d characters: %w", maxDocIDLen, appErr.ErrInvalid)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return fmt.Errorf("filename is required: %w", appErr.ErrInvalid)
	}
	if len(req.Data) == 0 {
		return appErr.ErrEmptyContent
	}
	if !s.loader.Supports(req.Filename) {
		return fmt.Errorf("%w: %q", appErr.ErrUnsupportedFormat, strings.ToLower(filepath.Ext(req.Filename)))
	}
	if s.opts.MaxFileSize > 0 && int64(len(req.Data)) > s.opts.MaxFileSize {
		return fmt.Errorf("file exceeds %d bytes: %w", s.opts.MaxFileSize, appErr.ErrInvalid)
	}
	return nil
}

func (s *IngestService) Stats(ctx context.Context) (*model.ChunkStats, error) {
	return s.store.Stats(ctx)
}

func (s *IngestService) Document(ctx context.Context, docID string) (*model.DocumentStat, error) {
	return s.store.DocumentStats(ctx, strings.TrimSpace(docID))
}

// Delete removes every chunk of docID. Unknown documents yield ErrNotFound.
func (s *IngestService) Delete(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return fmt.Errorf("doc_id is required: %w", appErr.ErrInvalid)
	}
	unlock, err := s.locks.Lock(ctx, docID)
	if err != nil {
		return err
	}
	defer unlock()
	n, err := s.store.Delete(ctx, docID)
	if err != nil {
		return appErr.Wrap(appErr.StagePersist, docID, appErr.ErrPersistence, err)
	}
	if n == 0 {
		return appErr.ErrNotFound
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("doc_id", docID), zap.Int64("chunks", n))
	return nil
}

// ReembedDegraded retries up to limit degraded chunks and marks the ones
// that now embed as ok. It returns how many were repaired.
func (s *IngestService) ReembedDegraded(ctx context.Context, limit int) (int, error) {
	items, err := s.store.ListDegraded(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Content
	}
	embeddings, err := s.embeddings.EmbedAll(ctx, texts)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for i, emb := range embeddings {
		if emb.Degraded() {
			continue
		}
		if err := s.store.UpdateEmbedding(ctx, items[i].ID, emb.Vector); err != nil {
			if errors.Is(err, appErr.ErrNotFound) {
				continue
			}
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}
