// Package llm wraps the chat-completion provider behind a minimal
// prompt-in, text-out interface so the classification pipeline stays
// independent of any particular SDK.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// Config holds the provider settings for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI calls an OpenAI-compatible chat-completion endpoint. It satisfies
// classify.Invoker.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI invoker. BaseURL is optional and allows
// pointing at compatible providers; logger may be nil.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAI{
		client: &client,
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string {
	return o.model
}

// Invoke sends the prompt as a single user message and returns the model's
// text reply.
func (o *OpenAI) Invoke(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: o.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	o.logger.Debug("chat completion finished",
		slog.String("model", o.model),
		slog.Duration("duration", time.Since(start)),
		slog.Int("prompt_chars", len(prompt)))

	return completion.Choices[0].Message.Content, nil
}
