package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/ingest"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// scriptedVector returns canned results per query and records every call
type scriptedVector struct {
	mu       sync.Mutex
	results  map[string][]models.SearchResultItem
	err      error
	queries  []string
	ingested []models.SearchResultItem // returned for any query once populated
}

func (v *scriptedVector) Search(_ context.Context, intent models.SearchIntent) ([]models.SearchResultItem, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries = append(v.queries, intent.Query)
	if v.err != nil {
		return nil, v.err
	}
	if r, ok := v.results[intent.Query]; ok {
		return r, nil
	}
	return v.ingested, nil
}

func (v *scriptedVector) Upsert(_ context.Context, _ *models.StoredDocument) error { return nil }
func (v *scriptedVector) Delete(_ context.Context, _ string) error                 { return nil }
func (v *scriptedVector) Health(_ context.Context) error                           { return nil }

// scriptedExternal returns canned documents or an error
type scriptedExternal struct {
	docs  []models.Context7Document
	err   error
	calls int
}

func (e *scriptedExternal) Fetch(_ context.Context, query, hint string) ([]models.Context7Document, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.docs, nil
}

func (e *scriptedExternal) Health(_ context.Context) error { return nil }

// recordingIngestor succeeds every document and feeds the vector fake so the
// post-ingest re-query sees the new content.
type recordingIngestor struct {
	vector     *scriptedVector
	workspaces []string
	ingested   []models.Context7Document
}

func (i *recordingIngestor) Ingest(_ context.Context, workspace string, docs []models.Context7Document) *ingest.Result {
	i.workspaces = append(i.workspaces, workspace)
	i.ingested = append(i.ingested, docs...)
	result := &ingest.Result{Succeeded: docs}
	if i.vector != nil {
		for _, d := range docs {
			i.vector.ingested = append(i.vector.ingested, models.SearchResultItem{
				ID: d.ID, Title: d.Title, Provider: "vector", Score: 0.9,
			})
		}
	}
	return result
}

// stubEvaluator returns labels in sequence, repeating the last one
type stubEvaluator struct {
	scores []models.ConfidenceScore
	calls  int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ models.SearchIntent, _ []models.SearchResultItem) (models.ConfidenceScore, error) {
	idx := s.calls
	if idx >= len(s.scores) {
		idx = len(s.scores) - 1
	}
	s.calls++
	return s.scores[idx], nil
}

// stubRefiner appends a marker per attempt, or reports a stall when set
type stubRefiner struct {
	stall bool
}

func (s *stubRefiner) Refine(_ context.Context, intent models.SearchIntent, _ []models.SearchResultItem, attempt int) (string, error) {
	if s.stall {
		return "", &interfaces.RefinementStalledError{Query: intent.Query}
	}
	return fmt.Sprintf("%s r%d", intent.Query, attempt), nil
}

// echoRefiner misbehaves by returning the input query with no error
type echoRefiner struct{}

func (echoRefiner) Refine(_ context.Context, intent models.SearchIntent, _ []models.SearchResultItem, _ int) (string, error) {
	return intent.Query, nil
}

// captureRecorder collects emitted steps
type captureRecorder struct {
	mu    sync.Mutex
	steps []Step
	ids   map[string]bool
}

func (c *captureRecorder) Record(correlationID string, step Step, _ time.Duration, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		c.ids = make(map[string]bool)
	}
	c.ids[correlationID] = true
	c.steps = append(c.steps, step)
}

func newTestOrchestrator(vector *scriptedVector, external *scriptedExternal, evaluator Evaluator, refiner Refiner) (*Orchestrator, *recordingIngestor, *captureRecorder) {
	ingestor := &recordingIngestor{vector: vector}
	recorder := &captureRecorder{}
	o := NewOrchestrator(vector, external, ingestor, evaluator, refiner, recorder, searchTestConfig(), common.GetLogger())
	return o, ingestor, recorder
}

func score(value float64, label models.DecisionLabel) models.ConfidenceScore {
	return models.ConfidenceScore{Value: value, Label: label}
}

func TestSearchHighConfidenceReturnsImmediately(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{
		"React useState hook": resultsWithScores(0.9, 0.85, 0.8),
	}}
	external := &scriptedExternal{}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.85, models.DecisionReturn)}}
	o, _, recorder := newTestOrchestrator(vector, external, evaluator, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "React useState hook"})
	require.NoError(t, err)

	assert.False(t, resp.ExternalSearchUsed)
	assert.Equal(t, 0, resp.RefinementsUsed)
	assert.Equal(t, models.DecisionReturn, resp.ConfidenceLabel)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, models.IngestionNotAttempted, resp.IngestionStatus)
	assert.Empty(t, resp.Degraded)
	assert.Zero(t, external.calls)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.Len(t, recorder.ids, 1)
}

func TestSearchZeroResultsGoesExternal(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{}}
	external := &scriptedExternal{docs: []models.Context7Document{
		{ID: "doc_new", Technology: "react", Title: "useImperativeHandle", Content: "# Ref\n\ncontent"},
	}}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{
		score(0.0, models.DecisionExternal),
		score(0.9, models.DecisionReturn),
	}}
	o, ingestor, _ := newTestOrchestrator(vector, external, evaluator, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{
		Query:          "useImperativeHandle",
		TechnologyHint: "react",
	})
	require.NoError(t, err)

	assert.True(t, resp.ExternalSearchUsed)
	assert.Equal(t, models.IngestionComplete, resp.IngestionStatus)
	require.Len(t, ingestor.ingested, 1)
	assert.Equal(t, []string{"react"}, ingestor.workspaces)

	// The re-query against the index returned the newly ingested content
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "doc_new", resp.Results[0].ID)
	assert.Len(t, vector.queries, 2)
}

func TestSearchRefinesMediumConfidence(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{
		"useState":    resultsWithScores(0.5, 0.5),
		"useState r1": resultsWithScores(0.9, 0.9, 0.9),
	}}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{
		score(0.5, models.DecisionRefine),
		score(0.9, models.DecisionReturn),
	}}
	o, _, _ := newTestOrchestrator(vector, &scriptedExternal{}, evaluator, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "useState"})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.RefinementsUsed)
	assert.False(t, resp.ExternalSearchUsed)
	assert.Equal(t, []string{"useState", "useState r1"}, vector.queries)
}

func TestSearchRefinementsNeverExceedMax(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{}}
	external := &scriptedExternal{docs: []models.Context7Document{
		{ID: "doc_x", Technology: "go", Title: "Fresh", Content: "# Fresh"},
	}}
	// Always refine: the loop must hand off to external after max attempts
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.5, models.DecisionRefine)}}
	o, _, _ := newTestOrchestrator(vector, external, evaluator, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "goroutine leak"})
	require.NoError(t, err)

	maxRefinements := searchTestConfig().MaxRefinements
	assert.Equal(t, maxRefinements, resp.RefinementsUsed)
	assert.True(t, resp.ExternalSearchUsed)
	assert.Equal(t, 1, external.calls)
	// initial search + one per refinement + post-ingest re-query
	assert.Len(t, vector.queries, maxRefinements+2)
}

func TestSearchStalledRefinementShortCircuitsExternal(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{}}
	external := &scriptedExternal{docs: nil}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.5, models.DecisionRefine)}}
	o, _, _ := newTestOrchestrator(vector, external, evaluator, &stubRefiner{stall: true})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "some query"})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.RefinementsUsed)
	assert.True(t, resp.ExternalSearchUsed)
	assert.Equal(t, 1, external.calls)
}

func TestSearchEchoedRefinementTreatedAsStall(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{}}
	external := &scriptedExternal{docs: nil}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.5, models.DecisionRefine)}}
	o, _, _ := newTestOrchestrator(vector, external, evaluator, echoRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "some query"})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.RefinementsUsed)
	assert.True(t, resp.ExternalSearchUsed)
	assert.Equal(t, 1, external.calls)
}

func TestSearchExternalFailureDegrades(t *testing.T) {
	internal := resultsWithScores(0.3, 0.2)
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{
		"obscure query": internal,
	}}
	external := &scriptedExternal{err: fmt.Errorf("provider down")}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.2, models.DecisionExternal)}}
	o, _, _ := newTestOrchestrator(vector, external, evaluator, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "obscure query"})
	require.NoError(t, err)

	assert.Equal(t, models.DegradedExternalSearchFailed, resp.Degraded)
	assert.False(t, resp.ExternalSearchUsed)
	assert.Equal(t, 2, resp.TotalCount)
}

func TestSearchInternalFailureIsFatal(t *testing.T) {
	vector := &scriptedVector{err: fmt.Errorf("index offline")}
	o, _, _ := newTestOrchestrator(vector, &scriptedExternal{}, &stubEvaluator{scores: []models.ConfidenceScore{score(0, models.DecisionExternal)}}, &stubRefiner{})

	_, err := o.Search(context.Background(), models.SearchIntent{Query: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal search failed")
}

func TestSearchDeadlineExpiryDegradesTimedOut(t *testing.T) {
	vector := &scriptedVector{err: context.DeadlineExceeded}
	o, _, _ := newTestOrchestrator(vector, &scriptedExternal{}, &stubEvaluator{scores: []models.ConfidenceScore{score(0, models.DecisionExternal)}}, &stubRefiner{})

	resp, err := o.Search(context.Background(), models.SearchIntent{Query: "slow query"})
	require.NoError(t, err)
	assert.Equal(t, models.DegradedTimedOut, resp.Degraded)
}

func TestSearchCancelledContextAborts(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{
		"q": resultsWithScores(0.9),
	}}
	o, _, _ := newTestOrchestrator(vector, &scriptedExternal{}, &stubEvaluator{scores: []models.ConfidenceScore{score(0.9, models.DecisionReturn)}}, &stubRefiner{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Search(ctx, models.SearchIntent{Query: "q"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	o, _, _ := newTestOrchestrator(&scriptedVector{}, &scriptedExternal{}, &stubEvaluator{scores: []models.ConfidenceScore{score(0, models.DecisionExternal)}}, &stubRefiner{})

	_, err := o.Search(context.Background(), models.SearchIntent{})
	require.Error(t, err)
}

func TestSearchEmitsStepRecords(t *testing.T) {
	vector := &scriptedVector{results: map[string][]models.SearchResultItem{
		"q": resultsWithScores(0.9, 0.9, 0.9),
	}}
	evaluator := &stubEvaluator{scores: []models.ConfidenceScore{score(0.9, models.DecisionReturn)}}
	o, _, recorder := newTestOrchestrator(vector, &scriptedExternal{}, evaluator, &stubRefiner{})

	_, err := o.Search(context.Background(), models.SearchIntent{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, []Step{StepInternalSearch, StepEvaluate, StepRespond}, recorder.steps)
}
