package jobs

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// HealthCheckJob probes the external collaborators and feeds their status
// into the monitor's dependency map.
type HealthCheckJob struct {
	vector   interfaces.VectorSearchService
	external interfaces.ExternalSearchService
	storage  interfaces.DocumentStorage
	monitor  *Monitor
	logger   arbor.ILogger
}

// NewHealthCheckJob creates the dependency health probe job
func NewHealthCheckJob(vector interfaces.VectorSearchService, external interfaces.ExternalSearchService, storage interfaces.DocumentStorage, monitor *Monitor, logger arbor.ILogger) *HealthCheckJob {
	return &HealthCheckJob{
		vector:   vector,
		external: external,
		storage:  storage,
		monitor:  monitor,
		logger:   logger,
	}
}

// Run probes each dependency and records its status. The job itself
// succeeds even when dependencies are down; failures surface through the
// monitor, not the execution log.
func (j *HealthCheckJob) Run(ctx context.Context) (int, error) {
	probed := 0

	if j.vector != nil {
		j.record("vector_search", j.vector.Health(ctx))
		probed++
	}
	if j.external != nil {
		j.record("external_search", j.external.Health(ctx))
		probed++
	}
	if j.storage != nil {
		_, err := j.storage.CountDocuments()
		j.record("document_store", err)
		probed++
	}

	return probed, nil
}

func (j *HealthCheckJob) record(name string, err error) {
	status := models.HealthHealthy
	if err != nil {
		status = models.HealthUnhealthy
		j.logger.Warn().Str("dependency", name).Err(err).Msg("Dependency probe failed")
	}
	j.monitor.SetDependencyHealth(name, status)
}
