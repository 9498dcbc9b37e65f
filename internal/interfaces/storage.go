package interfaces

import (
	"time"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// ListOptions controls document listing
type ListOptions struct {
	Workspace  string
	Technology string
	Limit      int
	Offset     int
}

// DocumentStorage persists stored documents. Content and TTL metadata are a
// single record: a write is one single-document transaction, so a reader can
// never observe content without TTL metadata.
type DocumentStorage interface {
	SaveDocument(doc *models.StoredDocument) error
	GetDocument(id string) (*models.StoredDocument, error)
	DeleteDocument(id string) error
	DeleteDocuments(ids []string) (int, error)
	ListDocuments(opts *ListOptions) ([]*models.StoredDocument, error)
	ListWorkspaces() ([]string, error)

	// FindExpired returns documents with expires_at <= now, up to limit
	FindExpired(workspace string, now time.Time, limit int) ([]*models.StoredDocument, error)

	// FindExpiringWithin returns unexpired documents whose expires_at falls
	// inside the window starting at now.
	FindExpiringWithin(now time.Time, window time.Duration) ([]*models.StoredDocument, error)

	CountDocuments() (int, error)
}

// JobStorage persists job definitions, the append-only execution log, and
// rolling per-job health state.
type JobStorage interface {
	SaveJobDefinition(def *models.JobDefinition) error
	GetJobDefinition(id string) (*models.JobDefinition, error)
	ListJobDefinitions() ([]*models.JobDefinition, error)
	DeleteJobDefinition(id string) error

	// RecordExecution appends one execution record; records are never updated
	RecordExecution(exec *models.JobExecution) error

	// ListExecutions returns recent executions for a job, newest first
	ListExecutions(jobID string, limit int) ([]*models.JobExecution, error)

	SaveJobHealth(health *models.JobHealth) error
	GetJobHealth(jobID string) (*models.JobHealth, error)
	ListJobHealth() ([]*models.JobHealth, error)
}
