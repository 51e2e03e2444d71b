package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/middleware"
	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
	"github.com/npesaras/wolfie-rag/internal/pkg/response"
)

// handleError logs the full chain and answers with a code plus a short,
// stage-prefixed message. Provider payloads and SQL never reach the client.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	response.Error(c, classify(err), appErr.PublicMessage(err))
}

func classify(err error) int {
	switch {
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		return errcode.ErrUnsupportedFile
	case errors.Is(err, appErr.ErrEmptyContent):
		return errcode.ErrEmptyContent
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound
	case errors.Is(err, appErr.ErrParse):
		return errcode.ErrParseFailed
	case errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrAIUnavailable
	case errors.Is(err, appErr.ErrGeneration):
		return errcode.ErrGenerationFailed
	case errors.Is(err, appErr.ErrEmbedding):
		return errcode.ErrEmbeddingFailed
	case errors.Is(err, appErr.ErrPersistence):
		return errcode.ErrPersistFailed
	default:
		return errcode.ErrInternal
	}
}

func parseBoolForm(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}
