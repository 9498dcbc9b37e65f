package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// DocumentStorage implements interfaces.DocumentStorage for Badger. A stored
// document is one record holding content and TTL metadata together, so the
// two are never observably separable.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.TTL.ExpiresAt.IsZero() {
		return fmt.Errorf("document %s has no TTL metadata", doc.ID)
	}
	if !doc.TTL.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("document %s expires_at %s is not in the future", doc.ID, doc.TTL.ExpiresAt)
	}

	now := time.Now()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	doc.UpdatedAt = now
	doc.ExpiresAt = doc.TTL.ExpiresAt

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.StoredDocument, error) {
	var doc models.StoredDocument
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.StoredDocument{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteDocuments removes the given documents and returns how many existed
func (s *DocumentStorage) DeleteDocuments(ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.db.Store().Delete(id, &models.StoredDocument{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete document %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *DocumentStorage) ListDocuments(opts *interfaces.ListOptions) ([]*models.StoredDocument, error) {
	query := badgerhold.Where("ID").Ne("") // Select all

	if opts != nil {
		if opts.Workspace != "" {
			query = query.And("Workspace").Eq(opts.Workspace)
		}
		if opts.Technology != "" {
			query = query.And("Technology").Eq(opts.Technology)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}

	var docs []models.StoredDocument
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return toPointers(docs), nil
}

func (s *DocumentStorage) ListWorkspaces() ([]string, error) {
	var docs []models.StoredDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to scan workspaces: %w", err)
	}

	seen := make(map[string]struct{})
	var workspaces []string
	for i := range docs {
		ws := docs[i].Workspace
		if _, ok := seen[ws]; ok {
			continue
		}
		seen[ws] = struct{}{}
		workspaces = append(workspaces, ws)
	}
	sort.Strings(workspaces)
	return workspaces, nil
}

func (s *DocumentStorage) FindExpired(workspace string, now time.Time, limit int) ([]*models.StoredDocument, error) {
	query := badgerhold.Where("ExpiresAt").Le(now)
	if workspace != "" {
		query = query.And("Workspace").Eq(workspace)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var docs []models.StoredDocument
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to find expired documents: %w", err)
	}
	return toPointers(docs), nil
}

func (s *DocumentStorage) FindExpiringWithin(now time.Time, window time.Duration) ([]*models.StoredDocument, error) {
	cutoff := now.Add(window)
	query := badgerhold.Where("ExpiresAt").Gt(now).And("ExpiresAt").Le(cutoff)

	var docs []models.StoredDocument
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to find expiring documents: %w", err)
	}
	return toPointers(docs), nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.StoredDocument{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func toPointers(docs []models.StoredDocument) []*models.StoredDocument {
	result := make([]*models.StoredDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result
}
