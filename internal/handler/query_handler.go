package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	"github.com/npesaras/wolfie-rag/internal/pkg/response"
	"github.com/npesaras/wolfie-rag/internal/service"
)

type QueryHandler struct {
	rag *service.RAGService
}

func NewQueryHandler(rag *service.RAGService) *QueryHandler {
	return &QueryHandler{rag: rag}
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.rag.Answer(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}
