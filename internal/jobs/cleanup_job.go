package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
)

// GarbageCollector is implemented by stores that can reclaim space after a
// large deletion pass.
type GarbageCollector interface {
	RunValueLogGC() error
}

// CleanupJob deletes documents whose TTL horizon has passed. Expired
// documents are removed in batches per workspace; a partially failed batch
// does not stop the sweep.
type CleanupJob struct {
	storage   interfaces.DocumentStorage
	vector    interfaces.VectorSearchService
	gc        GarbageCollector
	batchSize int
	logger    arbor.ILogger
}

// NewCleanupJob creates the TTL cleanup job. The garbage collector and
// vector service are optional.
func NewCleanupJob(storage interfaces.DocumentStorage, vector interfaces.VectorSearchService, gc GarbageCollector, batchSize int, logger arbor.ILogger) *CleanupJob {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &CleanupJob{
		storage:   storage,
		vector:    vector,
		gc:        gc,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run sweeps every workspace for expired documents and reports the total
// deleted count as the execution's processed items.
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	workspaces, err := j.storage.ListWorkspaces()
	if err != nil {
		return 0, fmt.Errorf("failed to list workspaces: %w", err)
	}

	totalDeleted := 0
	var firstErr error

	for _, workspace := range workspaces {
		if ctx.Err() != nil {
			return totalDeleted, ctx.Err()
		}

		deleted, err := j.sweepWorkspace(ctx, workspace, now)
		totalDeleted += deleted
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("workspace %s: %w", workspace, err)
		}
	}

	if totalDeleted > 0 && j.gc != nil {
		if err := j.gc.RunValueLogGC(); err != nil {
			j.logger.Debug().Err(err).Msg("Value log GC made no progress")
		}
	}

	j.logger.Info().
		Int("deleted_documents", totalDeleted).
		Int("workspaces", len(workspaces)).
		Msg("TTL cleanup complete")

	return totalDeleted, firstErr
}

// sweepWorkspace deletes expired documents from one workspace in batches
func (j *CleanupJob) sweepWorkspace(ctx context.Context, workspace string, now time.Time) (int, error) {
	start := time.Now()
	deleted := 0

	for {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}

		expired, err := j.storage.FindExpired(workspace, now, j.batchSize)
		if err != nil {
			return deleted, fmt.Errorf("failed to find expired documents: %w", err)
		}
		if len(expired) == 0 {
			break
		}

		ids := make([]string, len(expired))
		for i, doc := range expired {
			ids[i] = doc.ID
		}

		n, err := j.storage.DeleteDocuments(ids)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("failed to delete batch: %w", err)
		}

		if j.vector != nil {
			for _, id := range ids {
				if err := j.vector.Delete(ctx, id); err != nil {
					j.logger.Warn().Str("doc_id", id).Err(err).Msg("Failed to remove index entry")
				}
			}
		}

		if len(expired) < j.batchSize {
			break
		}
	}

	if deleted > 0 {
		j.logger.Info().
			Str("workspace", workspace).
			Int("deleted", deleted).
			Str("duration", time.Since(start).String()).
			Msg("Workspace cleanup complete")
	}
	return deleted, nil
}
