package search

import (
	"time"

	"github.com/ternarybob/arbor"
)

// Step names for orchestration transitions
type Step string

const (
	StepInternalSearch Step = "internal_search"
	StepEvaluate       Step = "evaluate"
	StepRefine         Step = "refine"
	StepExternalFetch  Step = "external_fetch"
	StepIngest         Step = "ingest"
	StepRespond        Step = "respond"
)

// StepRecorder receives one record per orchestration transition. Every
// record carries the correlation id so a single request can be traced
// across components.
type StepRecorder interface {
	Record(correlationID string, step Step, duration time.Duration, decision string)
}

// logStepRecorder emits step records as structured log events
type logStepRecorder struct {
	logger arbor.ILogger
}

// NewStepRecorder creates a log-backed step recorder
func NewStepRecorder(logger arbor.ILogger) StepRecorder {
	return &logStepRecorder{logger: logger}
}

func (r *logStepRecorder) Record(correlationID string, step Step, duration time.Duration, decision string) {
	r.logger.Info().
		Str("correlation_id", correlationID).
		Str("step", string(step)).
		Str("duration", duration.String()).
		Str("decision", decision).
		Msg("Search step")
}
