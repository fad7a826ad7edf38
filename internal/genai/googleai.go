package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

// DefaultModel is the Gemini model used for all generation stages.
const DefaultModel = "gemini-2.0-flash-lite"

// Config holds Gemini client configuration.
type Config struct {
	APIKey string
	Model  string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("genai: API key required")
	}
	return nil
}

// Client is a Gemini-backed Backend via langchaingo.
type Client struct {
	model  llms.Model
	logger *zap.Logger
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	return &Client{model: model, logger: logger}, nil
}

// Generate implements Backend. A single attempt, no retry: the pipeline's
// fallback policy handles failures.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSONOutput {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt)},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("genai: generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	result := &Result{
		Text:  choice.Content,
		Usage: usageFromGenerationInfo(choice.GenerationInfo),
	}

	c.logger.Debug("backend call completed",
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Int("total_tokens", result.Usage.TotalTokens))

	return result, nil
}

// usageFromGenerationInfo extracts token counts from langchaingo's loosely
// typed generation metadata. Absent or oddly typed values read as zero.
func usageFromGenerationInfo(info map[string]any) Usage {
	u := Usage{
		PromptTokens:     intField(info, "input_tokens"),
		CompletionTokens: intField(info, "output_tokens"),
		TotalTokens:      intField(info, "total_tokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func intField(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
