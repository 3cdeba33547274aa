// Package openai implements the ADK model.LLM interface over the OpenAI chat
// completions API. Any OpenAI-compatible server, such as Ollama, works through
// BaseURL.
package openai

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const defaultMaxTokens = 300

// Config configures a Model.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds each request; zero leaves the client default.
	Timeout    time.Duration
	MaxRetries int
	Logger     logger.Logger
}

// Model implements model.LLM for chat completion endpoints.
type Model struct {
	client    *openai.Client
	modelName string
	log       logger.Logger
}

// New creates a Model.
func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
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
	client := openai.NewClient(opts...)

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Model{
		client:    &client,
		modelName: cfg.Model,
		log:       log.WithFields(logger.ComponentField("openai_model"), logger.StringField("model", cfg.Model)),
	}, nil
}

// Name returns the model name.
func (o *Model) Name() string {
	return o.modelName
}

// GenerateContent generates a reply. Only non-streaming mode is supported.
func (o *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if stream {
			yield(nil, fmt.Errorf("streaming not supported"))
			return
		}
		yield(o.generate(ctx, req))
	}
}

func (o *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildParams(o.modelName, req)

	o.log.Debug("Sending chat completion", logger.IntField("messages", len(params.Messages)))
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	response, err := transformOpenAIToADK(completion)
	if err != nil {
		return nil, fmt.Errorf("failed to transform response: %w", err)
	}
	return response, nil
}

// buildParams maps an ADK request onto chat completion parameters. The system
// instruction becomes the leading system message.
func buildParams(modelName string, req *model.LLMRequest) openai.ChatCompletionNewParams {
	messages := transformADKToOpenAI(req.Contents)

	var maxTokens int64 = defaultMaxTokens
	params := openai.ChatCompletionNewParams{Model: modelName}

	if cfg := req.Config; cfg != nil {
		if system := joinText(cfg.SystemInstruction); system != "" {
			messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}, messages...)
		}
		if cfg.MaxOutputTokens > 0 {
			maxTokens = int64(cfg.MaxOutputTokens)
		}
		if cfg.Temperature != nil {
			params.Temperature = openai.Float(float64(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			params.TopP = openai.Float(float64(*cfg.TopP))
		}
		if len(cfg.StopSequences) > 0 {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSequences}
		}
	}

	params.MaxTokens = openai.Int(maxTokens)
	params.Messages = messages
	return params
}
