package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/npesaras/wolfie-rag/internal/middleware"
)

type RouterDeps struct {
	Auth        *AuthHandler
	Ingest      *IngestHandler
	Query       *QueryHandler
	Documents   *DocumentHandler
	Health      *HealthHandler
	JWTSecret   []byte
	QueryWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)
	api.POST("/auth/token", deps.Auth.Token)

	api.POST("/query", middleware.RateLimit(deps.QueryWindow), deps.Query.Query)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:doc_id", deps.Documents.Get)
	api.GET("/ingest/source-files", deps.Ingest.ListSourceFiles)

	admin := api.Group("")
	admin.Use(middleware.AdminAuth(deps.JWTSecret))
	admin.POST("/ingest", deps.Ingest.Ingest)
	admin.POST("/ingest/folder", deps.Ingest.IngestFolder)
	admin.DELETE("/documents/:doc_id", deps.Documents.Delete)
}
