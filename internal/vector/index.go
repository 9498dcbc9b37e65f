// Package vector provides the in-process search index used as the internal
// search collaborator. Documents are scored by weighted term overlap; index
// entries carry the document's workspace so searches stay partitioned.
package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

const titleWeight = 3.0

type indexEntry struct {
	doc        *models.StoredDocument
	titleTerms map[string]bool
	bodyTerms  map[string]bool
}

// LocalIndex implements interfaces.VectorSearchService over an in-memory
// inverted structure, hydrated from the document store at startup and kept
// current by ingestion and cleanup.
type LocalIndex struct {
	mu      sync.RWMutex
	entries map[string]*indexEntry
	storage interfaces.DocumentStorage
	logger  arbor.ILogger
}

// NewLocalIndex creates an empty index backed by the document store
func NewLocalIndex(storage interfaces.DocumentStorage, logger arbor.ILogger) *LocalIndex {
	return &LocalIndex{
		entries: make(map[string]*indexEntry),
		storage: storage,
		logger:  logger,
	}
}

// Warm hydrates the index from the document store
func (x *LocalIndex) Warm(ctx context.Context) error {
	docs, err := x.storage.ListDocuments(&interfaces.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to hydrate index: %w", err)
	}
	for _, doc := range docs {
		if err := x.Upsert(ctx, doc); err != nil {
			return err
		}
	}
	x.logger.Info().Int("documents", len(docs)).Msg("Search index hydrated")
	return nil
}

// Search scores indexed documents by weighted term overlap with the query.
// Results come back sorted by score, capped at the intent's limit.
func (x *LocalIndex) Search(ctx context.Context, intent models.SearchIntent) ([]models.SearchResultItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := tokenize(intent.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []models.SearchResultItem
	for _, entry := range x.entries {
		if intent.Workspace != "" && entry.doc.Workspace != intent.Workspace {
			continue
		}
		if intent.TechnologyHint != "" && entry.doc.Technology != "" &&
			!strings.EqualFold(entry.doc.Technology, intent.TechnologyHint) {
			continue
		}

		score := entry.score(terms)
		if score <= 0 {
			continue
		}
		results = append(results, models.SearchResultItem{
			ID:       entry.doc.ID,
			Title:    entry.doc.Title,
			Snippet:  snippet(entry.doc.Content),
			Provider: "local_index",
			Score:    score,
			Metadata: map[string]interface{}{
				"workspace":  entry.doc.Workspace,
				"technology": entry.doc.Technology,
				"doc_type":   string(entry.doc.DocType),
			},
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if intent.Limit > 0 && len(results) > intent.Limit {
		results = results[:intent.Limit]
	}
	return results, nil
}

// Upsert indexes one stored document, replacing any previous entry
func (x *LocalIndex) Upsert(_ context.Context, doc *models.StoredDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("cannot index document without an id")
	}

	entry := &indexEntry{
		doc:        doc,
		titleTerms: termSet(tokenize(doc.Title)),
		bodyTerms:  termSet(tokenize(doc.Content)),
	}

	x.mu.Lock()
	x.entries[doc.ID] = entry
	x.mu.Unlock()
	return nil
}

// Delete removes a document from the index. Unknown ids are not an error.
func (x *LocalIndex) Delete(_ context.Context, id string) error {
	x.mu.Lock()
	delete(x.entries, id)
	x.mu.Unlock()
	return nil
}

// Health verifies the backing store is reachable
func (x *LocalIndex) Health(_ context.Context) error {
	_, err := x.storage.CountDocuments()
	return err
}

// Size returns the number of indexed documents
func (x *LocalIndex) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// score is the weighted fraction of query terms present in the document
func (e *indexEntry) score(terms []string) float64 {
	var matched, total float64
	for _, term := range terms {
		total += titleWeight
		if e.titleTerms[term] {
			matched += titleWeight
		} else if e.bodyTerms[term] {
			matched += 1.0
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= 280 {
		return content
	}
	cut := 280
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

var _ interfaces.VectorSearchService = (*LocalIndex)(nil)
