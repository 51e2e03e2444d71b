package model

import "time"

type Chunk struct {
	ID             int64                  `json:"id"`
	DocID          string                 `json:"doc_id"`
	ChunkIndex     int                    `json:"chunk_index"`
	Content        string                 `json:"content"`
	Embedding      []float32              `json:"-"`
	EmbeddingState EmbeddingState         `json:"embedding_state"`
	Metadata       map[string]interface{} `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`
}

type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
