// Package llm provides the evaluation collaborator used by the confidence
// evaluator and query refiner. It wraps the Claude and Gemini APIs behind a
// single provider-agnostic interface; callers must treat any failure as a
// signal to fall back to their heuristic path.
package llm

import (
	"context"
	"strings"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderClaude uses the Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderGemini uses the Google Gemini API
	ProviderGemini ProviderType = "gemini"
)

// ContentRequest is a provider-agnostic content generation request
type ContentRequest struct {
	Prompt            string
	SystemInstruction string
	Model             string
	Temperature       float32
	MaxTokens         int
}

// ContentResponse is a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Provider defines the interface for AI content generation
type Provider interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
	GetProviderType() ProviderType
	Close() error
}

// DetectProvider determines the provider type from a model string.
// "claude-..." or "claude/..." selects Claude; "gemini-..." or "gemini/..."
// selects Gemini; anything else falls back to the given default.
func DetectProvider(model string, fallback ProviderType) ProviderType {
	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") || strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}
	return fallback
}

// NormalizeModel removes a provider prefix from the model name if present
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}
