package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/npesaras/wolfie-rag/internal/model"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
)

type SourceOptions struct {
	Dir         string
	Pattern     string
	Concurrency int
}

// SourceService ingests files from a configured directory. Each file's doc_id
// is its name without extension.
type SourceService struct {
	ingest *IngestService
	opts   SourceOptions
}

func NewSourceService(ingest *IngestService, opts SourceOptions) *SourceService {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &SourceService{ingest: ingest, opts: opts}
}

func (s *SourceService) Dir() string {
	return s.opts.Dir
}

func (s *SourceService) Supports(filename string) bool {
	return s.ingest.Supports(filename)
}

// ListFiles returns the supported files under the source directory, sorted by
// path. A missing directory is an empty listing.
func (s *SourceService) ListFiles(ctx context.Context) ([]model.SourceFile, error) {
	_ = ctx
	if s.opts.Dir == "" {
		return nil, fmt.Errorf("source dir is not configured: %w", appErr.ErrInvalid)
	}
	if _, err := os.Stat(s.opts.Dir); errors.Is(err, fs.ErrNotExist) {
		return []model.SourceFile{}, nil
	}
	matches, err := doublestar.Glob(os.DirFS(s.opts.Dir), s.opts.Pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]model.SourceFile, 0, len(matches))
	for _, rel := range matches {
		if !s.ingest.Supports(rel) {
			continue
		}
		info, err := os.Stat(filepath.Join(s.opts.Dir, filepath.FromSlash(rel)))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, model.SourceFile{
			Filename:  rel,
			SizeBytes: info.Size(),
			Extension: strings.ToLower(filepath.Ext(rel)),
		})
	}
	return out, nil
}

// IngestAll ingests every listed file with bounded concurrency. Per-file
// failures are reported in the result list; only cancellation fails the call.
func (s *SourceService) IngestAll(ctx context.Context) ([]model.FolderIngestItem, error) {
	files, err := s.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.FolderIngestItem, len(files))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = model.FolderIngestItem{Filename: file.Filename, Status: model.FolderIngestStatusError, Error: ctx.Err().Error()}
				return nil
			}
			res, err := s.ingestFile(ctx, filepath.Join(s.opts.Dir, filepath.FromSlash(file.Filename)))
			if err != nil {
				logutil.GetLogger(ctx).Error("folder file ingestion failed",
					zap.String("filename", file.Filename), zap.Error(err))
				results[i] = model.FolderIngestItem{
					Filename: file.Filename,
					DocID:    DocIDFromFilename(file.Filename),
					Status:   model.FolderIngestStatusError,
					Error:    appErr.PublicMessage(err),
				}
				return nil
			}
			results[i] = model.FolderIngestItem{
				Filename:       file.Filename,
				DocID:          res.DocID,
				Status:         model.FolderIngestStatusSuccess,
				Chunks:         res.Chunks,
				DegradedChunks: res.DegradedChunks,
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	ok := 0
	for _, r := range results {
		if r.Status == model.FolderIngestStatusSuccess {
			ok++
		}
	}
	logutil.GetLogger(ctx).Info("folder ingestion finished",
		zap.String("dir", s.opts.Dir),
		zap.Int("files", len(results)),
		zap.Int("succeeded", ok),
	)
	return results, nil
}

// IngestPath ingests a single file that must live inside the source directory.
func (s *SourceService) IngestPath(ctx context.Context, path string) (*model.IngestResult, error) {
	if !s.contains(path) {
		return nil, fmt.Errorf("%s is outside the source dir: %w", path, appErr.ErrInvalid)
	}
	return s.ingestFile(ctx, path)
}

func (s *SourceService) ingestFile(ctx context.Context, path string) (*model.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit := s.ingest.MaxFileSize(); limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", limit, appErr.ErrInvalid)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return s.ingest.Ingest(ctx, IngestRequest{
		DocID:    DocIDFromFilename(name),
		Filename: name,
		Data:     data,
	})
}

func (s *SourceService) contains(path string) bool {
	root, err := filepath.Abs(s.opts.Dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// DocIDFromFilename is the file name without directories and extension.
func DocIDFromFilename(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
