package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Refiner produces an improved query from an intent and the result set that
// scored below the return threshold. Implementations report an exhausted
// rewrite as *interfaces.RefinementStalledError; the orchestrator routes a
// stalled refinement to the external path.
type Refiner interface {
	Refine(ctx context.Context, intent models.SearchIntent, results []models.SearchResultItem, attempt int) (string, error)
}

// Filler terms stripped before augmenting a query
var refinerStopWords = map[string]bool{
	"how": true, "do": true, "i": true, "to": true, "the": true,
	"a": true, "an": true, "can": true, "what": true, "is": true,
	"in": true, "with": true, "my": true, "please": true,
}

// HeuristicRefiner rewrites queries with deterministic transformations:
// strip filler words, prepend a missing technology hint, then append a
// documentation qualifier. Each attempt applies the next transformation so
// successive refinements keep producing new queries.
type HeuristicRefiner struct{}

func NewHeuristicRefiner() *HeuristicRefiner {
	return &HeuristicRefiner{}
}

func (r *HeuristicRefiner) Refine(_ context.Context, intent models.SearchIntent, _ []models.SearchResultItem, attempt int) (string, error) {
	query := intent.Query

	if stripped := stripStopWords(query); stripped != query && stripped != "" {
		return stripped, nil
	}

	hint := strings.ToLower(intent.TechnologyHint)
	if hint != "" && !strings.Contains(strings.ToLower(query), hint) {
		return intent.TechnologyHint + " " + query, nil
	}

	qualifiers := []string{"documentation", "reference", "guide"}
	for _, q := range qualifiers {
		if !strings.Contains(strings.ToLower(query), q) {
			return query + " " + q, nil
		}
	}

	// Nothing left to change
	return "", &interfaces.RefinementStalledError{Query: query}
}

func stripStopWords(query string) string {
	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if refinerStopWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// LLMRefiner asks the language model for a better query, falling back to the
// heuristic on any failure.
type LLMRefiner struct {
	llm       interfaces.LLMService
	heuristic *HeuristicRefiner
	logger    arbor.ILogger
}

func NewLLMRefiner(llm interfaces.LLMService, logger arbor.ILogger) *LLMRefiner {
	return &LLMRefiner{
		llm:       llm,
		heuristic: NewHeuristicRefiner(),
		logger:    logger,
	}
}

func (r *LLMRefiner) Refine(ctx context.Context, intent models.SearchIntent, results []models.SearchResultItem, attempt int) (string, error) {
	raw, err := r.llm.Evaluate(ctx, r.buildPrompt(intent, results))
	if err != nil {
		r.logger.Warn().Err(err).Msg("LLM refinement failed, using heuristic")
		return r.heuristic.Refine(ctx, intent, results, attempt)
	}

	refined := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if refined == "" || refined == intent.Query || strings.ContainsRune(refined, '\n') {
		r.logger.Warn().Str("raw", raw).Msg("Unusable LLM refinement, using heuristic")
		return r.heuristic.Refine(ctx, intent, results, attempt)
	}
	return refined, nil
}

func (r *LLMRefiner) buildPrompt(intent models.SearchIntent, results []models.SearchResultItem) string {
	var b strings.Builder
	b.WriteString("Rewrite this developer documentation search query to get better results.\n")
	b.WriteString("Query: " + intent.Query + "\n")
	if intent.TechnologyHint != "" {
		b.WriteString("Technology: " + intent.TechnologyHint + "\n")
	}
	if len(results) > 0 {
		b.WriteString("\nThe current results were weak:\n")
		for i, res := range results {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", res.Title)
		}
	}
	b.WriteString("\nRespond with only the rewritten query on a single line, no quotes, no explanation. It must differ from the original.")
	return b.String()
}
