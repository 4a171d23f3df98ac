package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

// OpenAIClient implements Completer with OpenAI-compatible chat completions
type OpenAIClient struct {
	client      openai.Client
	model       string
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewOpenAIClient creates a chat completions client. BaseURL allows compatible gateways.
func NewOpenAIClient(cfg config.OpenAIConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:      openai.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		rateLimiter: limiter,
		log:         log.WithComponent("ai"),
	}
}

// Complete sends the system prompt and one user message
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterOpenAI); err != nil {
			return "", fmt.Errorf("rate limit error: %w", err)
		}
	}

	c.log.Debug().Str("model", c.model).Msg("Sending request to OpenAI")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("OpenAI API error")
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}

	c.log.Debug().
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Received OpenAI response")

	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAIClient)(nil)
