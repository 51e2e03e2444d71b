package model

import "time"

type DocumentStat struct {
	DocID          string    `json:"doc_id"`
	Chunks         int64     `json:"chunks"`
	DegradedChunks int64     `json:"degraded_chunks"`
	LastIngestedAt time.Time `json:"last_ingested_at"`
}

type ChunkStats struct {
	Documents      []DocumentStat `json:"documents"`
	TotalDocuments int            `json:"total_documents"`
	TotalChunks    int64          `json:"total_chunks"`
	TotalDegraded  int64          `json:"total_degraded"`
}

type IngestResult struct {
	DocID          string `json:"doc_id"`
	Filename       string `json:"filename"`
	Chunks         int    `json:"chunks_created"`
	DegradedChunks int    `json:"degraded_chunks"`
}

type SourceFile struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Extension string `json:"extension"`
}

const (
	FolderIngestStatusSuccess = "success"
	FolderIngestStatusError   = "error"
)

type FolderIngestItem struct {
	Filename       string `json:"filename"`
	DocID          string `json:"doc_id,omitempty"`
	Status         string `json:"status"`
	Chunks         int    `json:"chunks_created,omitempty"`
	DegradedChunks int    `json:"degraded_chunks,omitempty"`
	Error          string `json:"error,omitempty"`
}
