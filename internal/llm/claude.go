package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
)

// ClaudeProvider generates content via the Anthropic Claude API
type ClaudeProvider struct {
	client anthropic.Client
	config *common.ClaudeConfig
	retry  *RetryConfig
	logger arbor.ILogger
}

// NewClaudeProvider creates a Claude provider from configuration
func NewClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("claude provider requires an API key")
	}

	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		config: config,
		retry:  NewDefaultRetryConfig(),
		logger: logger,
	}, nil
}

// GetProviderType returns the provider type
func (p *ClaudeProvider) GetProviderType() ProviderType {
	return ProviderClaude
}

// GenerateContent sends the prompt to Claude and returns the text completion
func (p *ClaudeProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	model := NormalizeModel(request.Model)
	if model == "" {
		model = p.config.Model
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(request.Temperature))
	}
	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}
		if attempt == p.retry.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		return nil, fmt.Errorf("claude API call failed after %d retries: %w", p.retry.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}

// Close releases provider resources
func (p *ClaudeProvider) Close() error {
	return nil
}
