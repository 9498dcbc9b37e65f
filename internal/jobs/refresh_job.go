package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/ingest"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Ingestor is the job-path view of the ingestion pipeline
type Ingestor interface {
	Ingest(ctx context.Context, workspace string, docs []models.Context7Document) *ingest.Result
}

// RefreshJob re-fetches documents approaching their TTL horizon. Each
// refresh goes through the full ingestion pipeline, producing a new
// ingestion record with a freshly computed TTL.
type RefreshJob struct {
	storage   interfaces.DocumentStorage
	external  interfaces.ExternalSearchService
	pipeline  Ingestor
	threshold time.Duration
	logger    arbor.ILogger
}

// NewRefreshJob creates the document refresh job
func NewRefreshJob(storage interfaces.DocumentStorage, external interfaces.ExternalSearchService, pipeline Ingestor, thresholdDays int, logger arbor.ILogger) *RefreshJob {
	if thresholdDays <= 0 {
		thresholdDays = 7
	}
	return &RefreshJob{
		storage:   storage,
		external:  external,
		pipeline:  pipeline,
		threshold: time.Duration(thresholdDays) * 24 * time.Hour,
		logger:    logger,
	}
}

// Run finds documents expiring within the threshold window, groups them by
// workspace and technology, and re-ingests fresh copies. Returns the number
// of documents refreshed.
func (j *RefreshJob) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expiring, err := j.storage.FindExpiringWithin(now, j.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring documents: %w", err)
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	j.logger.Info().
		Int("expiring", len(expiring)).
		Str("window", j.threshold.String()).
		Msg("Refreshing documents near expiry")

	refreshed := 0
	var firstErr error

	for _, doc := range expiring {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}

		n, err := j.refresh(ctx, doc)
		refreshed += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return refreshed, firstErr
}

// refresh re-fetches one document's topic and ingests the results
func (j *RefreshJob) refresh(ctx context.Context, doc *models.StoredDocument) (int, error) {
	query := doc.Title
	if query == "" {
		query = doc.Technology
	}

	docs, err := j.external.Fetch(ctx, query, doc.Technology)
	if err != nil {
		j.logger.Warn().
			Str("doc_id", doc.ID).
			Err(err).
			Msg("Refresh fetch failed")
		return 0, fmt.Errorf("refresh fetch for %s: %w", doc.ID, err)
	}
	if len(docs) == 0 {
		j.logger.Debug().Str("doc_id", doc.ID).Msg("No fresh content for expiring document")
		return 0, nil
	}

	result := j.pipeline.Ingest(ctx, doc.Workspace, docs)
	if len(result.Failed) > 0 {
		j.logger.Warn().
			Str("doc_id", doc.ID).
			Int("failed", len(result.Failed)).
			Msg("Refresh ingestion partially failed")
	}
	return len(result.Succeeded), nil
}
