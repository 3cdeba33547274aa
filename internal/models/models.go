// Package models builds the configured language model behind the ADK
// model.LLM interface and classifies provider failures.
package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/lewisedginton/friday_assistant/internal/models/anthropic"
	"github.com/lewisedginton/friday_assistant/internal/models/openai"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// Provider names a model backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
)

// DefaultOllamaURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaURL = "http://localhost:11434/v1"

// Default model per provider.
var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3.2",
	ProviderGemini: "gemini-2.5-flash",
	ProviderClaude: "claude-sonnet-4-5-20250929",
}

// ErrNoProvider is returned by New when no provider is configured. Callers
// run in offline mode.
var ErrNoProvider = errors.New("no model provider configured")

// ErrEmptyResponse is returned by Generate when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// Config selects and configures a provider.
type Config struct {
	Provider   Provider
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     logger.Logger
}

// ParseProvider validates a provider name. Empty means ProviderNone.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProviderNone, nil
	case ProviderNone, ProviderOpenAI, ProviderOllama, ProviderGemini, ProviderClaude:
		return p, nil
	case "anthropic":
		return ProviderClaude, nil
	}
	return "", fmt.Errorf("unknown model provider %q", s)
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	return defaultModels[p]
}

// New builds the model for cfg. A missing API key for a hosted provider
// yields ErrNoProvider.
func New(ctx context.Context, cfg Config) (model.LLM, error) {
	name := cfg.Model
	if name == "" {
		name = DefaultModel(cfg.Provider)
	}

	if cfg.Provider == ProviderNone || cfg.Provider == "" {
		return nil, ErrNoProvider
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log.Info("Initializing model",
		logger.StringField("provider", string(cfg.Provider)),
		logger.StringField("model", name))

	switch cfg.Provider {
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return openai.New(openai.Config{
			APIKey: apiKey, Model: name, BaseURL: baseURL,
			Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries, Logger: cfg.Logger,
		})
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNoProvider)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey: cfg.APIKey, Model: name, BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries, Logger: cfg.Logger,
		})
	case ProviderClaude:
		return anthropic.NewClaudeModel(anthropic.Config{
			APIKey: cfg.APIKey, Model: name, BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries, Logger: cfg.Logger,
		})
	case ProviderGemini:
		clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
		if cfg.BaseURL != "" || cfg.Timeout > 0 {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
			if cfg.Timeout > 0 {
				clientCfg.HTTPOptions.Timeout = &cfg.Timeout
			}
		}
		llm, err := gemini.NewModel(ctx, name, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}
		return llm, nil
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}

// Generate runs a non-streaming request and returns the text of the reply.
func Generate(ctx context.Context, llm model.LLM, req *model.LLMRequest) (string, *model.LLMResponse, error) {
	var (
		text strings.Builder
		last *model.LLMResponse
	)
	for resp, err := range llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", nil, err
		}
		if resp == nil {
			continue
		}
		last = resp
		if resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", last, ErrEmptyResponse
	}
	return out, last, nil
}
