package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/handler"
	"github.com/npesaras/wolfie-rag/internal/job"
	"github.com/npesaras/wolfie-rag/internal/middleware"
	"github.com/npesaras/wolfie-rag/internal/model"
	"github.com/npesaras/wolfie-rag/internal/pkg/password"
	"github.com/npesaras/wolfie-rag/internal/schedule"
	"github.com/npesaras/wolfie-rag/internal/service"
	"github.com/npesaras/wolfie-rag/internal/watcher"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "wolfie-rag",
		Short: "document ingestion and question answering service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	var dir string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest every supported file of a folder once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.Source.Dir = dir
			}
			if cfg.Source.Dir == "" {
				return fmt.Errorf("--dir or source.dir is required")
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd, a.source)
		},
	}
	ingestCmd.Flags().StringVar(&dir, "dir", "", "folder to ingest, overrides source.dir")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "print an admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			auth := service.NewAuthService(cfg.Admin.PasswordHash, []byte(cfg.Admin.JWTSecret), time.Duration(cfg.Admin.TokenTTLHours)*time.Hour)
			if !auth.Enabled() {
				return fmt.Errorf("admin.jwt_secret is not configured")
			}
			token, err := auth.IssueToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "print the bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, tokenCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runIngest(ctx context.Context, cmd *cobra.Command, source *service.SourceService) error {
	results, err := source.IngestAll(ctx)
	if err != nil {
		return err
	}
	failed := 0
	out := cmd.OutOrStdout()
	for _, item := range results {
		if item.Status == model.FolderIngestStatusSuccess {
			fmt.Fprintf(out, "ok\t%s\t%s\t%d chunks (%d degraded)\n", item.Filename, item.DocID, item.Chunks, item.DegradedChunks)
			continue
		}
		failed++
		fmt.Fprintf(out, "error\t%s\t%s\n", item.Filename, item.Error)
	}
	fmt.Fprintf(out, "%d files, %d failed\n", len(results), failed)
	if failed > 0 {
		return fmt.Errorf("%d files failed to ingest", failed)
	}
	return nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("embed_model", a.embedModel),
		zap.String("source_dir", cfg.Source.Dir),
	)

	deps := handler.RouterDeps{
		Auth:        handler.NewAuthHandler(a.auth),
		Ingest:      handler.NewIngestHandler(a.ingest, a.source),
		Query:       handler.NewQueryHandler(a.rag),
		Documents:   handler.NewDocumentHandler(a.ingest),
		Health:      handler.NewHealthHandler(a.chunks),
		JWTSecret:   []byte(cfg.Admin.JWTSecret),
		QueryWindow: time.Duration(cfg.QueryWindowMs) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := registerJobs(scheduler, a); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if cfg.Source.Dir != "" && cfg.Jobs.SourceSyncCron != "" {
		if err := scheduler.Trigger(job.SourceSyncJobName); err != nil {
			logger.Warn("initial source sync not started", zap.Error(err))
		}
	}

	watchDone := make(chan struct{})
	if cfg.Source.Watch {
		w := watcher.New(cfg.Source.Dir, time.Duration(cfg.Source.WatchDebounceMs)*time.Millisecond, a.source)
		go func() {
			defer close(watchDone)
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher stopped", zap.Error(err))
			}
		}()
	} else {
		close(watchDone)
	}

	logger.Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	<-watchDone
	return nil
}

func registerJobs(s schedule.Scheduler, a *app) error {
	cfg := a.cfg
	if err := s.AddJob(job.NewEmbeddingCacheCleanupJob(a.cache, cfg.Embedding.CacheMaxAgeDays), cfg.Jobs.CacheCleanupCron); err != nil {
		return err
	}
	if err := s.AddJob(job.NewDegradedReembedJob(a.ingest, cfg.Jobs.ReembedBatch), cfg.Jobs.ReembedCron); err != nil {
		return err
	}
	if cfg.Source.Dir != "" {
		if err := s.AddJob(job.NewSourceSyncJob(a.source), cfg.Jobs.SourceSyncCron); err != nil {
			return err
		}
	}
	return nil
}
