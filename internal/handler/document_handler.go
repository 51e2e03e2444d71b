package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/npesaras/wolfie-rag/internal/pkg/response"
	"github.com/npesaras/wolfie-rag/internal/service"
)

type DocumentHandler struct {
	ingest *service.IngestService
}

func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

func (h *DocumentHandler) List(c *gin.Context) {
	stats, err := h.ingest.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	stat, err := h.ingest.Document(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stat)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("doc_id")
	if err := h.ingest.Delete(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"doc_id": docID, "deleted": true})
}
