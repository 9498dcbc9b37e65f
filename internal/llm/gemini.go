package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
)

// GeminiProvider generates content via the Google Gemini API
type GeminiProvider struct {
	client *genai.Client
	config *common.GeminiConfig
	retry  *RetryConfig
	logger arbor.ILogger
}

// NewGeminiProvider creates a Gemini provider from configuration
func NewGeminiProvider(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini provider requires an API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
		retry:  NewDefaultRetryConfig(),
		logger: logger,
	}, nil
}

// GetProviderType returns the provider type
func (p *GeminiProvider) GetProviderType() ProviderType {
	return ProviderGemini
}

// GenerateContent sends the prompt to Gemini and returns the text completion
func (p *GeminiProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	model := NormalizeModel(request.Model)
	if model == "" {
		model = p.config.Model
	}

	config := &genai.GenerateContentConfig{}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(request.Temperature)
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(request.Prompt, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Models.GenerateContent(ctx, model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == p.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		return nil, fmt.Errorf("gemini API call failed after %d retries: %w", p.retry.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &ContentResponse{
		Text:     text,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// Close releases provider resources
func (p *GeminiProvider) Close() error {
	return nil
}
