package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Evaluator scores a result set against a query intent
type Evaluator interface {
	Evaluate(ctx context.Context, intent models.SearchIntent, results []models.SearchResultItem) (models.ConfidenceScore, error)
}

// HeuristicEvaluator is the deterministic strategy: normalized mean of
// provider scores scaled by a result-count factor. Identical inputs always
// produce identical scores.
type HeuristicEvaluator struct {
	config *common.SearchConfig
}

// NewHeuristicEvaluator creates the deterministic evaluator
func NewHeuristicEvaluator(config *common.SearchConfig) *HeuristicEvaluator {
	return &HeuristicEvaluator{config: config}
}

// Evaluate returns zero confidence for an empty result set, otherwise the
// mean provider score discounted when fewer than three results came back.
func (e *HeuristicEvaluator) Evaluate(_ context.Context, intent models.SearchIntent, results []models.SearchResultItem) (models.ConfidenceScore, error) {
	if len(results) == 0 {
		return models.ConfidenceScore{
			Value:     0.0,
			Label:     models.DecisionExternal,
			Rationale: "no internal results",
		}, nil
	}

	var sum float64
	for _, r := range results {
		sum += clampScore(r.Score)
	}
	mean := sum / float64(len(results))

	countFactor := float64(len(results)) / 3.0
	if countFactor > 1.0 {
		countFactor = 1.0
	}

	value := clampScore(mean * countFactor)
	return models.ConfidenceScore{
		Value:     value,
		Label:     e.labelFor(value),
		Rationale: fmt.Sprintf("mean provider score %.2f over %d results", mean, len(results)),
	}, nil
}

func (e *HeuristicEvaluator) labelFor(value float64) models.DecisionLabel {
	switch {
	case value >= e.config.HighConfidence:
		return models.DecisionReturn
	case value >= e.config.MediumConfidence:
		return models.DecisionRefine
	default:
		return models.DecisionExternal
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LLMEvaluator asks the language model to judge result relevance. Any
// failure, including unparseable output, falls back to the heuristic so
// evaluation never stalls the pipeline.
type LLMEvaluator struct {
	llm       interfaces.LLMService
	heuristic *HeuristicEvaluator
	logger    arbor.ILogger
}

// NewLLMEvaluator creates the LLM-backed evaluator with its heuristic fallback
func NewLLMEvaluator(llm interfaces.LLMService, config *common.SearchConfig, logger arbor.ILogger) *LLMEvaluator {
	return &LLMEvaluator{
		llm:       llm,
		heuristic: NewHeuristicEvaluator(config),
		logger:    logger,
	}
}

type llmEvaluation struct {
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, intent models.SearchIntent, results []models.SearchResultItem) (models.ConfidenceScore, error) {
	if len(results) == 0 {
		return e.heuristic.Evaluate(ctx, intent, results)
	}

	raw, err := e.llm.Evaluate(ctx, e.buildPrompt(intent, results))
	if err != nil {
		e.logger.Warn().Err(err).Msg("LLM evaluation failed, using heuristic")
		return e.heuristic.Evaluate(ctx, intent, results)
	}

	var parsed llmEvaluation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		e.logger.Warn().Err(err).Msg("Unparseable LLM evaluation, using heuristic")
		return e.heuristic.Evaluate(ctx, intent, results)
	}

	value := clampScore(parsed.Confidence)
	rationale := parsed.Rationale
	if rationale == "" {
		rationale = "model-evaluated relevance"
	}
	return models.ConfidenceScore{
		Value:     value,
		Label:     e.heuristic.labelFor(value),
		Rationale: rationale,
	}, nil
}

func (e *LLMEvaluator) buildPrompt(intent models.SearchIntent, results []models.SearchResultItem) string {
	var b strings.Builder
	b.WriteString("You are scoring search results for a developer documentation query.\n")
	b.WriteString("Query: " + intent.Query + "\n")
	if intent.TechnologyHint != "" {
		b.WriteString("Technology: " + intent.TechnologyHint + "\n")
	}
	b.WriteString("\nResults:\n")
	for i, r := range results {
		snippet := r.Snippet
		if len(snippet) > 300 {
			cut := 300
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
		fmt.Fprintf(&b, "%d. %s (provider score %.2f)\n%s\n\n", i+1, r.Title, r.Score, snippet)
	}
	b.WriteString("Rate how well these results answer the query as a confidence between 0 and 1.\n")
	b.WriteString(`Respond with only JSON: {"confidence": <float>, "rationale": "<one sentence>"}`)
	return b.String()
}

// extractJSON trims any prose or code fences the model wrapped around its
// JSON payload.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
