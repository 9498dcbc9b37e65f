package interfaces

import (
	"context"
)

// LLMService is the optional evaluation collaborator used by the confidence
// evaluator and query refiner. Any failure must trigger the caller's
// heuristic fallback; it is never fatal to a request.
type LLMService interface {
	// Evaluate sends a prompt and returns the raw text completion
	Evaluate(ctx context.Context, prompt string) (string, error)
}
