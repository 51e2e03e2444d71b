package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Reembedder interface {
	ReembedDegraded(ctx context.Context, limit int) (int, error)
}

// DegradedReembedJob retries embeddings that fell back to the placeholder
// during ingestion, a bounded batch per run.
type DegradedReembedJob struct {
	ingest Reembedder
	batch  int
}

func NewDegradedReembedJob(ingest Reembedder, batch int) *DegradedReembedJob {
	if batch <= 0 {
		batch = 64
	}
	return &DegradedReembedJob{ingest: ingest, batch: batch}
}

func (j *DegradedReembedJob) Name() string {
	return "degraded_reembed"
}

func (j *DegradedReembedJob) Run(ctx context.Context) error {
	repaired, err := j.ingest.ReembedDegraded(ctx, j.batch)
	if err != nil {
		return err
	}
	if repaired > 0 {
		logutil.GetLogger(ctx).Info("degraded chunks re-embedded", zap.Int("repaired", repaired))
	}
	return nil
}
