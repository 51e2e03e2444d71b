package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/npesaras/wolfie-rag/internal/model"
	"github.com/npesaras/wolfie-rag/internal/pkg/dbutil"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

const chunkTable = "document_chunks"

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Replace swaps the whole chunk set of docID in one transaction. Concurrent
// replaces of the same document serialize on an advisory lock; on any error
// the previous set stays in place.
func (r *ChunkRepo) Replace(ctx context.Context, docID string, chunks []model.Chunk) (err error) {
	if err := validateChunkSet(docID, chunks); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "doc:"+docID); err != nil {
		return fmt.Errorf("lock document: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (doc_id, chunk_index, content, embedding, embedding_state, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		meta, mErr := encodeMetadata(c.Metadata)
		if mErr != nil {
			err = mErr
			return err
		}
		state := c.EmbeddingState
		if state == "" {
			state = model.EmbeddingStateOK
		}
		if _, err = stmt.ExecContext(ctx, docID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), string(state), meta); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func validateChunkSet(docID string, chunks []model.Chunk) error {
	if docID == "" {
		return fmt.Errorf("doc id is required: %w", appErr.ErrInvalid)
	}
	for i, c := range chunks {
		if c.DocID != "" && c.DocID != docID {
			return fmt.Errorf("chunk %d belongs to %q: %w", i, c.DocID, appErr.ErrInvalid)
		}
		if c.ChunkIndex != i {
			return fmt.Errorf("chunk index %d at position %d: %w", c.ChunkIndex, i, appErr.ErrInvalid)
		}
		if len(c.Embedding) != model.EmbeddingDimension {
			return fmt.Errorf("chunk %d embedding has %d dims, want %d: %w", i, len(c.Embedding), model.EmbeddingDimension, appErr.ErrInvalid)
		}
	}
	return nil
}

// Query returns up to topK chunks nearest to vector by cosine distance.
// Degraded rows never match. Ties break on doc_id then chunk_index.
func (r *ChunkRepo) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != model.EmbeddingDimension {
		return nil, fmt.Errorf("query vector has %d dims, want %d: %w", len(vector), model.EmbeddingDimension, appErr.ErrInvalid)
	}
	const query = `
		SELECT id, doc_id, chunk_index, content, embedding_state, metadata, created_at,
			LEAST(1.0, GREATEST(-1.0, 1 - (embedding <=> $1))) AS similarity
		FROM document_chunks
		WHERE embedding IS NOT NULL AND embedding_state = 'ok'
		ORDER BY embedding <=> $1, doc_id, chunk_index
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ScoredChunk
	for rows.Next() {
		var (
			item  model.ScoredChunk
			state string
			meta  []byte
		)
		if err := rows.Scan(&item.Chunk.ID, &item.Chunk.DocID, &item.Chunk.ChunkIndex, &item.Chunk.Content, &state, &meta, &item.Chunk.CreatedAt, &item.Similarity); err != nil {
			return nil, err
		}
		item.Chunk.EmbeddingState = model.EmbeddingState(state)
		if item.Chunk.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *ChunkRepo) Stats(ctx context.Context) (*model.ChunkStats, error) {
	sqlStr, args := dbutil.Finalize(`
		SELECT doc_id, COUNT(*),
			SUM(CASE WHEN embedding_state = ? THEN 1 ELSE 0 END),
			MAX(created_at)
		FROM document_chunks
		GROUP BY doc_id
		ORDER BY doc_id
	`, []interface{}{string(model.EmbeddingStateDegraded)})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := &model.ChunkStats{Documents: []model.DocumentStat{}}
	for rows.Next() {
		var item model.DocumentStat
		if err := rows.Scan(&item.DocID, &item.Chunks, &item.DegradedChunks, &item.LastIngestedAt); err != nil {
			return nil, err
		}
		stats.Documents = append(stats.Documents, item)
		stats.TotalChunks += item.Chunks
		stats.TotalDegraded += item.DegradedChunks
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.TotalDocuments = len(stats.Documents)
	return stats, nil
}

func (r *ChunkRepo) DocumentStats(ctx context.Context, docID string) (*model.DocumentStat, error) {
	sqlStr, args := dbutil.Finalize(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN embedding_state = ? THEN 1 ELSE 0 END), 0),
			MAX(created_at)
		FROM document_chunks
		WHERE doc_id = ?
	`, []interface{}{string(model.EmbeddingStateDegraded), docID})
	var (
		item model.DocumentStat
		last sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&item.Chunks, &item.DegradedChunks, &last); err != nil {
		return nil, err
	}
	if item.Chunks == 0 {
		return nil, appErr.ErrNotFound
	}
	item.DocID = docID
	item.LastIngestedAt = last.Time
	return &item, nil
}

// Delete removes every chunk of docID and reports how many rows went away.
func (r *ChunkRepo) Delete(ctx context.Context, docID string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(chunkTable, map[string]interface{}{"doc_id": docID})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) ListDegraded(ctx context.Context, limit int) ([]model.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	where := map[string]interface{}{
		"embedding_state": string(model.EmbeddingStateDegraded),
		"_orderby":        "id asc",
		"_limit":          []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect(chunkTable, where, []string{"id", "doc_id", "chunk_index", "content"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		item := model.Chunk{EmbeddingState: model.EmbeddingStateDegraded}
		if err := rows.Scan(&item.ID, &item.DocID, &item.ChunkIndex, &item.Content); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateEmbedding fills in a degraded chunk and marks it ok. A chunk that was
// replaced or already repaired in the meantime yields ErrNotFound.
func (r *ChunkRepo) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	if len(vector) != model.EmbeddingDimension {
		return fmt.Errorf("embedding has %d dims, want %d: %w", len(vector), model.EmbeddingDimension, appErr.ErrInvalid)
	}
	where := map[string]interface{}{
		"id":              id,
		"embedding_state": string(model.EmbeddingStateDegraded),
	}
	update := map[string]interface{}{
		"embedding":       pgvector.NewVector(vector),
		"embedding_state": string(model.EmbeddingStateOK),
	}
	sqlStr, args, err := builder.BuildUpdate(chunkTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Ping reports whether the store is reachable.
func (r *ChunkRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func encodeMetadata(meta map[string]interface{}) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}
