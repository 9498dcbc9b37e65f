package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDoc(id, workspace string, expiresAt time.Time) *models.StoredDocument {
	return &models.StoredDocument{
		ID:         id,
		Workspace:  workspace,
		Technology: "react",
		Title:      "useState reference",
		Content:    "# useState\n\nState hook reference.",
		DocType:    models.DocTypeAPIReference,
		TTL: models.TTLMetadata{
			TTLDays:      30,
			ExpiresAt:    expiresAt,
			ComputedFrom: []string{"base:30"},
		},
	}
}

// upsertRaw bypasses SaveDocument's write-time invariant so tests can seed
// already-expired records.
func upsertRaw(t *testing.T, db *BadgerDB, doc *models.StoredDocument) {
	t.Helper()
	doc.ExpiresAt = doc.TTL.ExpiresAt
	doc.IngestedAt = time.Now()
	require.NoError(t, db.Store().Upsert(doc.ID, doc))
}

func TestDocumentStorage_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := testDoc("doc_1", "react", time.Now().Add(30*24*time.Hour))
	require.NoError(t, storage.SaveDocument(doc))

	got, err := storage.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, "useState reference", got.Title)
	assert.Equal(t, 30, got.TTL.TTLDays)
	assert.False(t, got.IngestedAt.IsZero())

	_, err = storage.GetDocument("doc_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDocumentStorage_RejectsMissingTTL(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := testDoc("doc_1", "react", time.Time{})
	err := storage.SaveDocument(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no TTL metadata")
}

func TestDocumentStorage_RejectsPastExpiry(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := testDoc("doc_1", "react", time.Now().Add(-time.Hour))
	err := storage.SaveDocument(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the future")
}

func TestDocumentStorage_FindExpired(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	now := time.Now()
	upsertRaw(t, db, testDoc("doc_1", "react", now.Add(-48*time.Hour)))
	upsertRaw(t, db, testDoc("doc_2", "react", now.Add(-time.Hour)))
	upsertRaw(t, db, testDoc("doc_3", "vue", now.Add(-time.Minute)))
	upsertRaw(t, db, testDoc("doc_4", "react", now.Add(24*time.Hour)))
	upsertRaw(t, db, testDoc("doc_5", "vue", now.Add(48*time.Hour)))

	expired, err := storage.FindExpired("", now, 0)
	require.NoError(t, err)
	assert.Len(t, expired, 3)

	expiredReact, err := storage.FindExpired("react", now, 0)
	require.NoError(t, err)
	assert.Len(t, expiredReact, 2)

	limited, err := storage.FindExpired("", now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDocumentStorage_FindExpiringWithin(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	now := time.Now()
	upsertRaw(t, db, testDoc("doc_expired", "react", now.Add(-time.Hour)))
	upsertRaw(t, db, testDoc("doc_soon", "react", now.Add(3*24*time.Hour)))
	upsertRaw(t, db, testDoc("doc_later", "react", now.Add(30*24*time.Hour)))

	expiring, err := storage.FindExpiringWithin(now, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "doc_soon", expiring[0].ID)
}

func TestDocumentStorage_DeleteDocuments(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	future := time.Now().Add(24 * time.Hour)
	require.NoError(t, storage.SaveDocument(testDoc("doc_1", "react", future)))
	require.NoError(t, storage.SaveDocument(testDoc("doc_2", "react", future)))

	deleted, err := storage.DeleteDocuments([]string{"doc_1", "doc_2", "doc_missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := storage.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDocumentStorage_ListWorkspaces(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	future := time.Now().Add(24 * time.Hour)
	require.NoError(t, storage.SaveDocument(testDoc("doc_1", "react", future)))
	require.NoError(t, storage.SaveDocument(testDoc("doc_2", "vue", future)))
	require.NoError(t, storage.SaveDocument(testDoc("doc_3", "react", future)))

	workspaces, err := storage.ListWorkspaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"react", "vue"}, workspaces)
}

func TestJobStorage_Definitions(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())

	def := &models.JobDefinition{
		ID:       "ttl-cleanup",
		Name:     "TTL Cleanup",
		Schedule: models.ScheduleSpec{Kind: models.ScheduleCron, Cron: "0 3 * * *"},
		Retry:    models.DefaultRetryPolicy(),
		Enabled:  true,
	}
	require.NoError(t, storage.SaveJobDefinition(def))

	got, err := storage.GetJobDefinition("ttl-cleanup")
	require.NoError(t, err)
	assert.Equal(t, "TTL Cleanup", got.Name)
	assert.True(t, got.Enabled)

	got.Enabled = false
	require.NoError(t, storage.SaveJobDefinition(got))

	got, err = storage.GetJobDefinition("ttl-cleanup")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.NoError(t, storage.DeleteJobDefinition("ttl-cleanup"))
	_, err = storage.GetJobDefinition("ttl-cleanup")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobStorage_ExecutionsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())

	base := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		exec := &models.JobExecution{
			ID:        common.NewExecutionID(),
			JobID:     "ttl-cleanup",
			Trigger:   models.TriggerScheduled,
			Attempt:   i,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Outcome:   models.OutcomeSuccess,
		}
		require.NoError(t, storage.RecordExecution(exec))
	}

	execs, err := storage.ListExecutions("ttl-cleanup", 2)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	// Newest first
	assert.True(t, execs[0].StartedAt.After(execs[1].StartedAt))

	// Duplicate IDs are rejected: the log is append-only
	dup := &models.JobExecution{ID: execs[0].ID, JobID: "ttl-cleanup", StartedAt: base}
	assert.Error(t, storage.RecordExecution(dup))
}

func TestJobStorage_Health(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())

	health := &models.JobHealth{
		JobID:               "ttl-cleanup",
		Status:              models.HealthDegraded,
		ConsecutiveFailures: 2,
	}
	require.NoError(t, storage.SaveJobHealth(health))

	got, err := storage.GetJobHealth("ttl-cleanup")
	require.NoError(t, err)
	assert.Equal(t, models.HealthDegraded, got.Status)
	assert.Equal(t, 2, got.ConsecutiveFailures)

	all, err := storage.ListJobHealth()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
