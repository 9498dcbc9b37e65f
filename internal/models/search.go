package models

// DecisionLabel is the routing decision produced by confidence evaluation
type DecisionLabel string

// DecisionLabel constants
const (
	DecisionReturn   DecisionLabel = "return"
	DecisionRefine   DecisionLabel = "refine"
	DecisionExternal DecisionLabel = "external"
)

// SearchIntent captures one inbound query. Immutable once created for a
// request; refinement produces a new intent.
type SearchIntent struct {
	Query          string `json:"query"`
	TechnologyHint string `json:"technology_hint,omitempty"`
	Workspace      string `json:"workspace,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// WithQuery returns a copy of the intent carrying a refined query string
func (i SearchIntent) WithQuery(query string) SearchIntent {
	refined := i
	refined.Query = query
	return refined
}

// SearchResultItem is one result from a search provider. Owned by the stage
// that produced it; later stages wrap or annotate, never mutate.
type SearchResultItem struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Snippet  string                 `json:"snippet"`
	Provider string                 `json:"provider"` // Originating provider identifier
	Score    float64                `json:"score"`    // Provider-reported relevance in [0,1]
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ConfidenceScore is computed fresh per evaluation call, never persisted
type ConfidenceScore struct {
	Value     float64       `json:"value"` // Normalized to [0,1]
	Label     DecisionLabel `json:"label"`
	Rationale string        `json:"rationale"`
}

// RefinementAttempt records one pass through the refinement loop
type RefinementAttempt struct {
	OriginalQuery string          `json:"original_query"`
	RefinedQuery  string          `json:"refined_query"`
	Attempt       int             `json:"attempt"`
	Confidence    ConfidenceScore `json:"confidence"`
}

// Degradation status flags carried on a best-effort response so callers can
// distinguish "no results" from "could not complete enrichment".
const (
	DegradedExternalSearchFailed = "external_search_failed"
	DegradedTimedOut             = "timed_out"
)

// IngestionStatus summarizes an ingestion pass on the request path
type IngestionStatus string

// IngestionStatus constants
const (
	IngestionNotAttempted IngestionStatus = "not_attempted"
	IngestionComplete     IngestionStatus = "complete"
	IngestionPartial      IngestionStatus = "partial"
	IngestionFailed       IngestionStatus = "failed"
)

// SearchRequest is the request schema exposed to the API layer
type SearchRequest struct {
	Query          string `json:"query"`
	TechnologyHint string `json:"technology_hint,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

// SearchResponse is the response schema exposed to the API layer
type SearchResponse struct {
	Results            []SearchResultItem `json:"results"`
	TotalCount         int                `json:"total_count"`
	ConfidenceLabel    DecisionLabel      `json:"confidence_label"`
	RefinementsUsed    int                `json:"refinements_used"`
	ExternalSearchUsed bool               `json:"external_search_used"`
	IngestionStatus    IngestionStatus    `json:"ingestion_status"`
	Degraded           string             `json:"degraded,omitempty"` // Degradation flag, empty when fully served
	CorrelationID      string             `json:"correlation_id"`
}
