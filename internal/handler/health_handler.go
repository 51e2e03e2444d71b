package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	"github.com/npesaras/wolfie-rag/internal/pkg/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logutil.GetLogger(ctx).Error("health check failed", zap.Error(err))
			response.Error(c, errcode.ErrInternal, "database unreachable")
			return
		}
	}
	response.Success(c, gin.H{"status": "healthy"})
}
