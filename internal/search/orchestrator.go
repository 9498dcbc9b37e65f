package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/ingest"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Ingestor is the request-path view of the ingestion pipeline
type Ingestor interface {
	Ingest(ctx context.Context, workspace string, docs []models.Context7Document) *ingest.Result
}

// Orchestrator drives one search request through internal search,
// confidence evaluation, the bounded refinement loop and the external
// fetch-and-ingest path.
type Orchestrator struct {
	vector    interfaces.VectorSearchService
	external  interfaces.ExternalSearchService
	pipeline  Ingestor
	evaluator Evaluator
	refiner   Refiner
	recorder  StepRecorder
	config    *common.SearchConfig
	logger    arbor.ILogger
}

// NewOrchestrator wires the search decision pipeline. The evaluator and
// refiner strategies are chosen by the caller from the configured mode.
func NewOrchestrator(vector interfaces.VectorSearchService, external interfaces.ExternalSearchService, pipeline Ingestor, evaluator Evaluator, refiner Refiner, recorder StepRecorder, config *common.SearchConfig, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		vector:    vector,
		external:  external,
		pipeline:  pipeline,
		evaluator: evaluator,
		refiner:   refiner,
		recorder:  recorder,
		config:    config,
		logger:    logger,
	}
}

// run carries the mutable state of one orchestration pass
type run struct {
	correlationID string
	intent        models.SearchIntent // current (possibly refined) intent
	results       []models.SearchResultItem
	score         models.ConfidenceScore
	refinements   []models.RefinementAttempt
	externalUsed  bool
	ingestion     models.IngestionStatus
	degraded      string
}

// Search executes the decision pipeline for one intent. The context deadline
// bounds the whole request; on expiry the best internal results seen so far
// are returned with a timed_out flag.
func (o *Orchestrator) Search(ctx context.Context, intent models.SearchIntent) (*models.SearchResponse, error) {
	if intent.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if intent.Limit <= 0 {
		intent.Limit = o.config.ResultLimit
	}

	r := &run{
		correlationID: common.NewCorrelationID(),
		intent:        intent,
		ingestion:     models.IngestionNotAttempted,
	}

	o.logger.Info().
		Str("correlation_id", r.correlationID).
		Str("query", intent.Query).
		Str("technology_hint", intent.TechnologyHint).
		Msg("Search started")

	for {
		if degraded, err := o.checkDeadline(ctx, r); err != nil {
			return nil, err
		} else if degraded {
			return o.respond(r), nil
		}

		if err := o.internalSearch(ctx, r); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				r.degraded = models.DegradedTimedOut
				return o.respond(r), nil
			}
			return nil, fmt.Errorf("internal search failed: %w", err)
		}

		o.evaluate(ctx, r)

		switch r.score.Label {
		case models.DecisionReturn:
			return o.respond(r), nil

		case models.DecisionRefine:
			if len(r.refinements) >= o.config.MaxRefinements {
				return o.externalPath(ctx, r)
			}
			if stalled := o.refine(ctx, r); stalled {
				return o.externalPath(ctx, r)
			}

		default:
			return o.externalPath(ctx, r)
		}
	}
}

// checkDeadline applies the context policy: an expired deadline degrades the
// response to the best results seen so far, while an explicit cancellation
// aborts the request.
func (o *Orchestrator) checkDeadline(ctx context.Context, r *run) (degraded bool, err error) {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return false, nil
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		r.degraded = models.DegradedTimedOut
		return true, nil
	}
	return false, ctxErr
}

func (o *Orchestrator) internalSearch(ctx context.Context, r *run) error {
	start := time.Now()
	results, err := o.vector.Search(ctx, r.intent)
	if err != nil {
		o.recorder.Record(r.correlationID, StepInternalSearch, time.Since(start), "error")
		return err
	}
	r.results = results
	o.recorder.Record(r.correlationID, StepInternalSearch, time.Since(start), fmt.Sprintf("%d results", len(results)))
	return nil
}

func (o *Orchestrator) evaluate(ctx context.Context, r *run) {
	start := time.Now()
	score, err := o.evaluator.Evaluate(ctx, r.intent, r.results)
	if err != nil {
		// Strategies fall back internally; an error here still must not
		// stall the request.
		score = models.ConfidenceScore{Value: 0, Label: models.DecisionExternal, Rationale: "evaluation unavailable"}
	}
	r.score = score
	o.recorder.Record(r.correlationID, StepEvaluate, time.Since(start), string(score.Label))
}

// refine runs one refinement attempt. Returns true when refinement stalled
// and the run should short-circuit to the external path.
func (o *Orchestrator) refine(ctx context.Context, r *run) (stalled bool) {
	start := time.Now()
	refined, err := o.refiner.Refine(ctx, r.intent, r.results, len(r.refinements)+1)
	if err == nil && refined == r.intent.Query {
		err = &interfaces.RefinementStalledError{Query: r.intent.Query}
	}
	if err != nil {
		o.recorder.Record(r.correlationID, StepRefine, time.Since(start), "stalled")
		o.logger.Warn().
			Str("correlation_id", r.correlationID).
			Str("query", r.intent.Query).
			Err(err).
			Msg("Refinement stalled, routing to external search")
		return true
	}

	r.refinements = append(r.refinements, models.RefinementAttempt{
		OriginalQuery: r.intent.Query,
		RefinedQuery:  refined,
		Attempt:       len(r.refinements) + 1,
		Confidence:    r.score,
	})
	r.intent = r.intent.WithQuery(refined)
	o.recorder.Record(r.correlationID, StepRefine, time.Since(start), refined)
	return false
}

// externalPath fetches fresh documents, ingests them, and re-runs internal
// search once against the newly ingested content.
func (o *Orchestrator) externalPath(ctx context.Context, r *run) (*models.SearchResponse, error) {
	if degraded, err := o.checkDeadline(ctx, r); err != nil {
		return nil, err
	} else if degraded {
		return o.respond(r), nil
	}

	start := time.Now()
	docs, err := o.external.Fetch(ctx, r.intent.Query, r.intent.TechnologyHint)
	if err != nil {
		o.recorder.Record(r.correlationID, StepExternalFetch, time.Since(start), "error")
		o.logger.Warn().
			Str("correlation_id", r.correlationID).
			Err(err).
			Msg("External search failed, returning internal results")
		r.degraded = models.DegradedExternalSearchFailed
		return o.respond(r), nil
	}
	r.externalUsed = true
	o.recorder.Record(r.correlationID, StepExternalFetch, time.Since(start), fmt.Sprintf("%d documents", len(docs)))

	if len(docs) > 0 {
		start = time.Now()
		result := o.pipeline.Ingest(ctx, o.workspaceFor(r), docs)
		r.ingestion = result.Status()
		o.recorder.Record(r.correlationID, StepIngest, time.Since(start), string(r.ingestion))
	}

	if err := o.internalSearch(ctx, r); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.degraded = models.DegradedTimedOut
			return o.respond(r), nil
		}
		return nil, fmt.Errorf("internal search failed: %w", err)
	}
	o.evaluate(ctx, r)

	return o.respond(r), nil
}

func (o *Orchestrator) workspaceFor(r *run) string {
	if r.intent.Workspace != "" {
		return r.intent.Workspace
	}
	if r.intent.TechnologyHint != "" {
		return r.intent.TechnologyHint
	}
	return "default"
}

func (o *Orchestrator) respond(r *run) *models.SearchResponse {
	o.recorder.Record(r.correlationID, StepRespond, 0, string(r.score.Label))

	resp := &models.SearchResponse{
		Results:            r.results,
		TotalCount:         len(r.results),
		ConfidenceLabel:    r.score.Label,
		RefinementsUsed:    len(r.refinements),
		ExternalSearchUsed: r.externalUsed,
		IngestionStatus:    r.ingestion,
		Degraded:           r.degraded,
		CorrelationID:      r.correlationID,
	}

	o.logger.Info().
		Str("correlation_id", r.correlationID).
		Int("results", resp.TotalCount).
		Str("confidence", string(resp.ConfidenceLabel)).
		Int("refinements", resp.RefinementsUsed).
		Bool("external", resp.ExternalSearchUsed).
		Str("degraded", resp.Degraded).
		Msg("Search complete")

	return resp
}
