package interfaces

import (
	"context"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// VectorSearchService is the internal vector index collaborator. The core
// calls it for internal lookup and for persisting ingested documents.
type VectorSearchService interface {
	// Search runs a vector search for the intent and returns ranked results.
	Search(ctx context.Context, intent models.SearchIntent) ([]models.SearchResultItem, error)

	// Upsert indexes a stored document. The TTL metadata travels with the
	// document so index entries share the document's lifecycle.
	Upsert(ctx context.Context, doc *models.StoredDocument) error

	// Delete removes a document from the index
	Delete(ctx context.Context, id string) error

	// Health probes index availability
	Health(ctx context.Context) error
}

// ExternalSearchService fetches fresh documentation from an external
// provider. Returned documents are raw: classification and TTL are computed
// by the core.
type ExternalSearchService interface {
	Fetch(ctx context.Context, query, technologyHint string) ([]models.Context7Document, error)

	// Health probes provider availability
	Health(ctx context.Context) error
}
