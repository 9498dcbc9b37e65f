package vector

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// listStorage serves a fixed document list for hydration tests
type listStorage struct {
	mu   sync.Mutex
	docs []*models.StoredDocument
}

func (s *listStorage) SaveDocument(doc *models.StoredDocument) error { return nil }
func (s *listStorage) GetDocument(id string) (*models.StoredDocument, error) {
	return nil, interfaces.ErrNotFound
}
func (s *listStorage) DeleteDocument(id string) error            { return nil }
func (s *listStorage) DeleteDocuments(ids []string) (int, error) { return 0, nil }
func (s *listStorage) ListDocuments(opts *interfaces.ListOptions) ([]*models.StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs, nil
}
func (s *listStorage) ListWorkspaces() ([]string, error) { return nil, nil }
func (s *listStorage) FindExpired(workspace string, now time.Time, limit int) ([]*models.StoredDocument, error) {
	return nil, nil
}
func (s *listStorage) FindExpiringWithin(now time.Time, window time.Duration) ([]*models.StoredDocument, error) {
	return nil, nil
}
func (s *listStorage) CountDocuments() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs), nil
}

func indexDoc(id, workspace, technology, title, content string) *models.StoredDocument {
	return &models.StoredDocument{
		ID:         id,
		Workspace:  workspace,
		Technology: technology,
		Title:      title,
		Content:    content,
	}
}

func TestLocalIndexSearchRanksTitleMatchesHigher(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_title", "frontend", "react", "useState hook reference", "state management in components")))
	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_body", "frontend", "react", "component patterns", "the useState hook manages local state")))

	results, err := idx.Search(ctx, models.SearchIntent{Query: "useState hook"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc_title", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLocalIndexWorkspaceFilter(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_fe", "frontend", "react", "hooks guide", "hooks")))
	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_be", "backend", "go", "goroutines guide", "hooks for goroutines")))

	results, err := idx.Search(ctx, models.SearchIntent{Query: "hooks", Workspace: "frontend"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_fe", results[0].ID)
}

func TestLocalIndexTechnologyHintFilter(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_react", "frontend", "react", "state guide", "state")))
	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_vue", "frontend", "vue", "state guide", "state")))

	results, err := idx.Search(ctx, models.SearchIntent{Query: "state guide", TechnologyHint: "React"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_react", results[0].ID)
}

func TestLocalIndexLimit(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, idx.Upsert(ctx, indexDoc("doc_"+id, "ws", "go", "topic "+id, "shared topic text")))
	}

	results, err := idx.Search(ctx, models.SearchIntent{Query: "topic", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestLocalIndexUpsertReplacesAndDeleteRemoves(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_1", "ws", "go", "old title", "old body")))
	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_1", "ws", "go", "new title", "new body")))
	assert.Equal(t, 1, idx.Size())

	results, err := idx.Search(ctx, models.SearchIntent{Query: "old title"})
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Delete(ctx, "doc_1"))
	assert.Zero(t, idx.Size())
}

func TestLocalIndexWarm(t *testing.T) {
	storage := &listStorage{docs: []*models.StoredDocument{
		indexDoc("doc_1", "ws", "go", "context cancellation", "how context cancellation works"),
		indexDoc("doc_2", "ws", "go", "worker pools", "bounded worker pools"),
	}}
	idx := NewLocalIndex(storage, common.GetLogger())

	require.NoError(t, idx.Warm(context.Background()))
	assert.Equal(t, 2, idx.Size())

	results, err := idx.Search(context.Background(), models.SearchIntent{Query: "worker pools"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_2", results[0].ID)
}

func TestLocalIndexNoMatch(t *testing.T) {
	idx := NewLocalIndex(&listStorage{}, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, indexDoc("doc_1", "ws", "go", "channels", "channel basics")))

	results, err := idx.Search(ctx, models.SearchIntent{Query: "kubernetes ingress"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSnippetTruncatesOnRuneBoundary(t *testing.T) {
	// The two-byte rune straddles the cut point and must not be split
	content := strings.Repeat("a", 279) + "éllo wörld"

	s := snippet(content)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, strings.Repeat("a", 279), s)

	assert.Equal(t, "short", snippet("  short  "))
}
