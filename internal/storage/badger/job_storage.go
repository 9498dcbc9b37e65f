package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// JobStorage implements interfaces.JobStorage for Badger. Job definitions are
// mutable; execution records are append-only.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJobDefinition(def *models.JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	if err := s.db.Store().Upsert("jobdef:"+def.ID, def); err != nil {
		return fmt.Errorf("failed to save job definition: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJobDefinition(id string) (*models.JobDefinition, error) {
	var def models.JobDefinition
	if err := s.db.Store().Get("jobdef:"+id, &def); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job definition: %w", err)
	}
	return &def, nil
}

func (s *JobStorage) ListJobDefinitions() ([]*models.JobDefinition, error) {
	var defs []models.JobDefinition
	if err := s.db.Store().Find(&defs, badgerhold.Where("ID").Ne("").SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list job definitions: %w", err)
	}

	result := make([]*models.JobDefinition, len(defs))
	for i := range defs {
		result[i] = &defs[i]
	}
	return result, nil
}

func (s *JobStorage) DeleteJobDefinition(id string) error {
	if err := s.db.Store().Delete("jobdef:"+id, &models.JobDefinition{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete job definition: %w", err)
	}
	return nil
}

// RecordExecution appends one execution record. Records are immutable once
// written; a retry produces a fresh record.
func (s *JobStorage) RecordExecution(exec *models.JobExecution) error {
	if exec.ID == "" {
		return fmt.Errorf("execution ID is required")
	}
	if exec.JobID == "" {
		return fmt.Errorf("execution job ID is required")
	}

	if err := s.db.Store().Insert(exec.ID, exec); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func (s *JobStorage) ListExecutions(jobID string, limit int) ([]*models.JobExecution, error) {
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var execs []models.JobExecution
	if err := s.db.Store().Find(&execs, query); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	result := make([]*models.JobExecution, len(execs))
	for i := range execs {
		result[i] = &execs[i]
	}
	return result, nil
}

func (s *JobStorage) SaveJobHealth(health *models.JobHealth) error {
	if health.JobID == "" {
		return fmt.Errorf("job health requires a job ID")
	}
	health.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert("health:"+health.JobID, health); err != nil {
		return fmt.Errorf("failed to save job health: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJobHealth(jobID string) (*models.JobHealth, error) {
	var health models.JobHealth
	if err := s.db.Store().Get("health:"+jobID, &health); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job health: %w", err)
	}
	return &health, nil
}

func (s *JobStorage) ListJobHealth() ([]*models.JobHealth, error) {
	var healths []models.JobHealth
	if err := s.db.Store().Find(&healths, badgerhold.Where("JobID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list job health: %w", err)
	}

	result := make([]*models.JobHealth, len(healths))
	for i := range healths {
		result[i] = &healths[i]
	}
	return result, nil
}
