package job

import (
	"context"
	"fmt"

	"github.com/npesaras/wolfie-rag/internal/model"
)

type FolderIngester interface {
	IngestAll(ctx context.Context) ([]model.FolderIngestItem, error)
}

const SourceSyncJobName = "source_sync"

// SourceSyncJob re-ingests the whole source folder.
type SourceSyncJob struct {
	source FolderIngester
}

func NewSourceSyncJob(source FolderIngester) *SourceSyncJob {
	return &SourceSyncJob{source: source}
}

func (j *SourceSyncJob) Name() string {
	return SourceSyncJobName
}

func (j *SourceSyncJob) Run(ctx context.Context) error {
	results, err := j.source.IngestAll(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, item := range results {
		if item.Status != model.FolderIngestStatusSuccess {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(results))
	}
	return nil
}
