package jobs

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Monitor derives per-job health from consecutive failure counts and keeps
// the dependency health snapshot fed by the health check job. Single writer:
// only the manager and health check job call into it.
type Monitor struct {
	mu                 sync.RWMutex
	storage            interfaces.JobStorage
	health             map[string]*models.JobHealth
	dependencies       map[string]models.HealthStatus
	degradedThreshold  int
	unhealthyThreshold int
	logger             arbor.ILogger
}

// NewMonitor creates a job monitor. Persisted health state is loaded lazily
// on first observation per job.
func NewMonitor(storage interfaces.JobStorage, degradedThreshold, unhealthyThreshold int, logger arbor.ILogger) *Monitor {
	if degradedThreshold <= 0 {
		degradedThreshold = 1
	}
	if unhealthyThreshold <= degradedThreshold {
		unhealthyThreshold = degradedThreshold + 2
	}
	return &Monitor{
		storage:            storage,
		health:             make(map[string]*models.JobHealth),
		dependencies:       make(map[string]models.HealthStatus),
		degradedThreshold:  degradedThreshold,
		unhealthyThreshold: unhealthyThreshold,
		logger:             logger,
	}
}

// RecordOutcome folds one execution outcome into the job's rolling health
func (m *Monitor) RecordOutcome(exec *models.JobExecution) {
	if exec.Outcome == models.OutcomeSkipped {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.loadLocked(exec.JobID)
	now := exec.CompletedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch exec.Outcome {
	case models.OutcomeSuccess, models.OutcomePartial:
		h.ConsecutiveFailures = 0
		h.LastSuccess = &now
		h.LastError = ""
	case models.OutcomeFailure:
		h.ConsecutiveFailures++
		h.LastFailure = &now
		h.LastError = exec.Error
	}

	previous := h.Status
	h.Status = m.statusFor(h.ConsecutiveFailures)
	h.UpdatedAt = now

	if h.Status != previous {
		m.logger.Warn().
			Str("job_id", exec.JobID).
			Str("status", string(h.Status)).
			Int("consecutive_failures", h.ConsecutiveFailures).
			Msg("Job health changed")
	}

	if err := m.storage.SaveJobHealth(h); err != nil {
		m.logger.Warn().Str("job_id", exec.JobID).Err(err).Msg("Failed to persist job health")
	}
}

// SetDependencyHealth records the probed status of an external dependency
func (m *Monitor) SetDependencyHealth(name string, status models.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies[name] = status
}

// JobHealth returns the rolling health for one job
func (m *Monitor) JobHealth(jobID string) models.JobHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.loadLocked(jobID)
}

// SystemHealth builds the aggregate snapshot: the worst job or dependency
// status wins.
func (m *Monitor) SystemHealth() models.SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := models.SystemHealth{
		Status:       models.HealthHealthy,
		Jobs:         make(map[string]models.JobHealth, len(m.health)),
		Dependencies: make(map[string]models.HealthStatus, len(m.dependencies)),
		CheckedAt:    time.Now().UTC(),
	}

	for id, h := range m.health {
		snapshot.Jobs[id] = *h
		snapshot.Status = worseOf(snapshot.Status, h.Status)
	}
	for name, status := range m.dependencies {
		snapshot.Dependencies[name] = status
		snapshot.Status = worseOf(snapshot.Status, status)
	}
	return snapshot
}

func (m *Monitor) statusFor(consecutiveFailures int) models.HealthStatus {
	switch {
	case consecutiveFailures >= m.unhealthyThreshold:
		return models.HealthUnhealthy
	case consecutiveFailures >= m.degradedThreshold:
		return models.HealthDegraded
	default:
		return models.HealthHealthy
	}
}

// loadLocked returns the in-memory health record for a job, pulling the
// persisted state on first access. Caller holds the lock.
func (m *Monitor) loadLocked(jobID string) *models.JobHealth {
	if h, ok := m.health[jobID]; ok {
		return h
	}
	h, err := m.storage.GetJobHealth(jobID)
	if err != nil || h == nil {
		h = &models.JobHealth{JobID: jobID, Status: models.HealthHealthy}
	}
	m.health[jobID] = h
	return h
}

var healthRank = map[models.HealthStatus]int{
	models.HealthHealthy:   0,
	models.HealthUnknown:   1,
	models.HealthDegraded:  2,
	models.HealthUnhealthy: 3,
}

func worseOf(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
