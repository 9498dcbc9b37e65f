package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
)

// Service adapts a Provider to the interfaces.LLMService contract used by
// the confidence evaluator and query refiner.
type Service struct {
	provider    Provider
	model       string
	maxTokens   int
	temperature float32
	logger      arbor.ILogger
}

// NewService creates the configured LLM service, or returns nil when no
// provider is configured. A nil service means callers run heuristic-only.
func NewService(ctx context.Context, cfg *common.LLMConfig, logger arbor.ILogger) (*Service, error) {
	// A provider-prefixed model override routes the service, so
	// model = "gemini/..." wins over default_provider = "claude".
	providerType := ProviderType(cfg.DefaultProvider)
	override := ""
	if cfg.Model != "" {
		providerType = DetectProvider(cfg.Model, providerType)
		override = NormalizeModel(cfg.Model)
	}

	var provider Provider
	var model string
	var err error

	switch providerType {
	case ProviderClaude:
		if cfg.Claude.APIKey == "" {
			return nil, nil
		}
		provider, err = NewClaudeProvider(&cfg.Claude, logger)
		model = cfg.Claude.Model
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		provider, err = NewGeminiProvider(ctx, &cfg.Gemini, logger)
		model = cfg.Gemini.Model
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.DefaultProvider)
	}
	if err != nil {
		return nil, err
	}
	if override != "" {
		model = override
	}

	logger.Info().
		Str("provider", string(providerType)).
		Str("model", model).
		Msg("LLM service initialized")

	return &Service{
		provider:    provider,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Evaluate sends a prompt and returns the raw text completion
func (s *Service) Evaluate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.provider.GenerateContent(ctx, &ContentRequest{
		Prompt:      prompt,
		Model:       s.model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Close releases provider resources
func (s *Service) Close() error {
	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}

var _ interfaces.LLMService = (*Service)(nil)
