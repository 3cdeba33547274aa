// Package anthropic implements the ADK model.LLM interface over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const defaultMaxTokens = 300

// Config configures a ClaudeModel.
type Config struct {
	APIKey string
	// Model defaults to the latest Sonnet.
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     logger.Logger
}

// ClaudeModel implements model.LLM for Claude models.
type ClaudeModel struct {
	client    anthropic.Client
	modelName string
	log       logger.Logger
}

// NewClaudeModel creates a ClaudeModel.
func NewClaudeModel(cfg Config) (*ClaudeModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &ClaudeModel{
		client:    anthropic.NewClient(opts...),
		modelName: modelName,
		log:       log.WithFields(logger.ComponentField("claude_model"), logger.StringField("model", modelName)),
	}, nil
}

// Name returns the name of the model
func (c *ClaudeModel) Name() string {
	return c.modelName
}

// GenerateContent implements model.LLM. Streaming requests get a single
// complete response.
func (c *ClaudeModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params, err := buildParams(c.modelName, req)
		if err != nil {
			yield(nil, fmt.Errorf("failed to transform request: %w", err))
			return
		}

		c.log.Debug("Sending request to anthropic",
			logger.IntField("messages", len(params.Messages)),
			logger.BoolField("stream", stream),
		)

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			yield(nil, fmt.Errorf("claude api error: %w", err))
			return
		}

		yield(transformAnthropicToADK(resp))
	}
}

func buildParams(modelName string, req *model.LLMRequest) (anthropic.MessageNewParams, error) {
	messages, systemPrompt, err := transformADKToAnthropic(req.Contents)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
	}

	if cfg := req.Config; cfg != nil {
		if system := joinText(cfg.SystemInstruction); system != "" {
			if systemPrompt != "" {
				system += "\n\n" + systemPrompt
			}
			systemPrompt = system
		}
		if cfg.MaxOutputTokens > 0 {
			params.MaxTokens = int64(cfg.MaxOutputTokens)
		}
		if cfg.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			params.TopP = anthropic.Float(float64(*cfg.TopP))
		}
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params, nil
}
