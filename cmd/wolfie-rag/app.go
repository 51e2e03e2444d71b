package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/ai"
	"github.com/npesaras/wolfie-rag/internal/chunker"
	"github.com/npesaras/wolfie-rag/internal/config"
	"github.com/npesaras/wolfie-rag/internal/db"
	"github.com/npesaras/wolfie-rag/internal/embedcache"
	"github.com/npesaras/wolfie-rag/internal/filestore"
	"github.com/npesaras/wolfie-rag/internal/loader"
	"github.com/npesaras/wolfie-rag/internal/repo"
	"github.com/npesaras/wolfie-rag/internal/service"
)

// app holds everything built from one config file.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	chunks     *repo.ChunkRepo
	cache      *repo.EmbeddingCacheRepo
	files      filestore.Store
	ingest     *service.IngestService
	source     *service.SourceService
	rag        *service.RAGService
	auth       *service.AuthService
	embedModel string
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildApp(cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a := &app{
		cfg:    cfg,
		db:     conn,
		chunks: repo.NewChunkRepo(conn),
		cache:  repo.NewEmbeddingCacheRepo(conn),
		auth:   service.NewAuthService(cfg.Admin.PasswordHash, []byte(cfg.Admin.JWTSecret), time.Duration(cfg.Admin.TokenTTLHours)*time.Hour),
	}
	if err := a.buildServices(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildServices() error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())

	limiter := ai.NewLimiter(cfg.AI.RatePerSecond, cfg.AI.Burst)
	embedder, err := ai.BuildEmbedder(cfg.AI.Embed)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	embedder = ai.WrapRateLimitToEmbedder(embedder, limiter)
	if cfg.Embedding.DBCache {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.cache)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Embedding.LRUSize, time.Duration(cfg.Embedding.LRUTTLMinutes)*time.Minute)

	generator, err := ai.BuildGenerator(cfg.AI.Generate)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	generator = ai.WrapRateLimitToGenerator(generator, limiter)
	generator = ai.WrapTimeoutToGenerator(generator, time.Duration(cfg.AI.Timeout)*time.Second)

	if embedder == nil {
		logger.Warn("no embedding provider configured; ingestion and queries will fail")
	} else {
		a.embedModel = embedder.ModelName()
	}
	if generator == nil {
		logger.Warn("no generation provider configured; answers above the threshold will fail")
	}

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	a.files = files

	embeddings := service.NewEmbeddingService(embedder, service.EmbeddingOptions{
		BatchSize:      cfg.Embedding.BatchSize,
		MaxAttempts:    cfg.Embedding.MaxAttempts,
		Backoff:        time.Duration(*cfg.Embedding.BackoffMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Embedding.AttemptTimeout) * time.Second,
	})
	a.ingest = service.NewIngestService(
		loader.New(cfg.Source.AllowedExtensions...),
		chunker.New(chunker.WithChunkSize(cfg.RAG.ChunkSize), chunker.WithOverlap(cfg.RAG.ChunkOverlap)),
		embeddings,
		a.chunks,
		files,
		service.IngestOptions{MaxFileSize: cfg.Source.MaxFileSize},
	)
	a.source = service.NewSourceService(a.ingest, service.SourceOptions{
		Dir:         cfg.Source.Dir,
		Pattern:     cfg.Source.Pattern,
		Concurrency: cfg.Source.Concurrency,
	})
	a.rag = service.NewRAGService(
		service.NewRetriever(embeddings, a.chunks),
		service.NewAnswerComposer(generator, *cfg.RAG.SimilarityThreshold, cfg.RAG.PreviewChars),
		cfg.RAG.TopK,
		cfg.RAG.MaxTopK,
	)
	return nil
}

func (a *app) Close() error {
	return a.db.Close()
}
