package handler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/npesaras/wolfie-rag/internal/model"
	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	"github.com/npesaras/wolfie-rag/internal/pkg/response"
	"github.com/npesaras/wolfie-rag/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
	source *service.SourceService
}

func NewIngestHandler(ingest *service.IngestService, source *service.SourceService) *IngestHandler {
	return &IngestHandler{ingest: ingest, source: source}
}

type ingestResponse struct {
	*model.IngestResult
	Warning string `json:"warning,omitempty"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	docID := strings.TrimSpace(c.PostForm("doc_id"))
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "doc_id is required")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	limit := h.ingest.MaxFileSize()
	if limit > 0 && file.Size > limit {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(limit))
		return
	}
	if !h.ingest.Supports(file.Filename) {
		response.Error(c, errcode.ErrUnsupportedFile, "unsupported file format")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), service.IngestRequest{
		DocID:           docID,
		Filename:        file.Filename,
		Data:            data,
		PersistOriginal: parseBoolForm(c, "persist_original"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ingestResponse{IngestResult: result, Warning: degradedWarning(result.DegradedChunks, result.Chunks)})
}

func (h *IngestHandler) IngestFolder(c *gin.Context) {
	results, err := h.source.IngestAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	succeeded := 0
	for _, item := range results {
		if item.Status == model.FolderIngestStatusSuccess {
			succeeded++
		}
	}
	response.Success(c, gin.H{
		"results":   results,
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (h *IngestHandler) ListSourceFiles(c *gin.Context) {
	files, err := h.source.ListFiles(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"files":     files,
		"total":     len(files),
		"directory": h.source.Dir(),
	})
}

func degradedWarning(degraded, total int) string {
	if degraded <= 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d chunks could not be embedded and are excluded from search until re-embedded", degraded, total)
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
