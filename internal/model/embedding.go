package model

// EmbeddingDimension is the vector length stored in document_chunks.embedding.
const EmbeddingDimension = 768

type EmbeddingState string

const (
	EmbeddingStateOK       EmbeddingState = "ok"
	EmbeddingStateDegraded EmbeddingState = "degraded"
)

type Embedding struct {
	Vector []float32      `json:"vector"`
	State  EmbeddingState `json:"state"`
}

func (e Embedding) Degraded() bool {
	return e.State == EmbeddingStateDegraded
}

// DegradedEmbedding is the all-zero placeholder used when a chunk could not be embedded.
func DegradedEmbedding() Embedding {
	return Embedding{
		Vector: make([]float32, EmbeddingDimension),
		State:  EmbeddingStateDegraded,
	}
}

type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
