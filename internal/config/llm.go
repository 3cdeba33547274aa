package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/friday_assistant/internal/models"
)

// ProviderAuto picks a provider from whichever API key is set.
const ProviderAuto = "auto"

// LLMConfig holds LLM provider selection and request settings
type LLMConfig struct {
	// Provider is one of "auto", "none", "openai", "ollama", "gemini" or "claude"
	Provider        string        `env:"LLM_PROVIDER" yaml:"provider" default:"auto"`
	Timeout         time.Duration `env:"LLM_TIMEOUT" yaml:"timeout" default:"30s"`
	MaxRetries      int           `env:"LLM_MAX_RETRIES" yaml:"max_retries" default:"2"`
	MaxOutputTokens int           `env:"LLM_MAX_OUTPUT_TOKENS" yaml:"max_output_tokens" default:"300"`
	Temperature     float64       `env:"LLM_TEMPERATURE" yaml:"temperature" default:"0.7"`
}

// IsAuto reports whether the provider is chosen from the configured keys.
func (c LLMConfig) IsAuto() bool {
	return strings.EqualFold(strings.TrimSpace(c.Provider), ProviderAuto)
}

// Validate checks LLMConfig
func (c LLMConfig) Validate() error {
	var result error
	if !c.IsAuto() {
		if _, err := models.ParseProvider(c.Provider); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("llm timeout must be greater than 0"))
	}
	if c.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("llm max_retries cannot be negative"))
	}
	if c.MaxOutputTokens <= 0 {
		result = multierror.Append(result, fmt.Errorf("llm max_output_tokens must be greater than 0"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		result = multierror.Append(result, fmt.Errorf("llm temperature must be between 0 and 2, got %v", c.Temperature))
	}
	return result
}
