// Package config holds the assistant's application configuration.
package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/models"
	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"friday-assistant"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Logging configuration
	pkgconfig.CommonConfig `yaml:",inline"`

	Assistant AssistantConfig `yaml:"assistant"`

	// LLM provider selection and per-provider settings
	LLM       LLMConfig       `yaml:"llm"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Ollama    OllamaConfig    `yaml:"ollama"`

	Database pkgconfig.SQLiteConfig `yaml:"database"`
	Memory   MemoryConfig           `yaml:"memory"`
	Worker   WorkerConfig           `yaml:"worker"`
	Digest   DigestConfig           `yaml:"digest"`
	Storage  StorageConfig          `yaml:"storage"`

	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Security SecurityConfig             `yaml:"security"`
	Health   HealthConfig               `yaml:"health"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
}

// Load reads path (if set) and overlays environment variables. An empty
// path loads from the environment only.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns every problem found
func (c AppConfig) Validate() error {
	var result error
	for _, v := range []pkgconfig.Validator{
		c.CommonConfig,
		c.Assistant,
		c.LLM,
		c.Database,
		c.Memory,
		c.Worker,
		c.Digest,
		c.Storage,
		c.HTTP,
		c.Security,
		c.Health,
		c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// GetLogLevel returns the parsed logger level
func (c AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// IsProduction returns true if running in production environment
func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// NewLogger builds the application logger from the logging settings.
func (c AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.LogFormat,
		Service: c.ServiceName,
	})
}

// ResolvedProvider maps "auto" to the first provider with an API key,
// preferring Gemini, then OpenAI, then Claude. With no key at all the
// assistant runs offline.
func (c AppConfig) ResolvedProvider() (models.Provider, error) {
	if !c.LLM.IsAuto() {
		return models.ParseProvider(c.LLM.Provider)
	}
	switch {
	case c.Gemini.APIKey != "":
		return models.ProviderGemini, nil
	case c.OpenAI.APIKey != "":
		return models.ProviderOpenAI, nil
	case c.Anthropic.APIKey != "":
		return models.ProviderClaude, nil
	}
	return models.ProviderNone, nil
}

// ModelConfig returns the settings for the resolved provider.
func (c AppConfig) ModelConfig(log logger.Logger) (models.Config, error) {
	provider, err := c.ResolvedProvider()
	if err != nil {
		return models.Config{}, err
	}

	cfg := models.Config{
		Provider:   provider,
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
		Logger:     log,
	}
	switch provider {
	case models.ProviderOpenAI:
		cfg.APIKey, cfg.Model, cfg.BaseURL = c.OpenAI.APIKey, c.OpenAI.Model, c.OpenAI.BaseURL
	case models.ProviderClaude:
		cfg.APIKey, cfg.Model, cfg.BaseURL = c.Anthropic.APIKey, c.Anthropic.Model, c.Anthropic.BaseURL
	case models.ProviderGemini:
		cfg.APIKey, cfg.Model, cfg.BaseURL = c.Gemini.APIKey, c.Gemini.Model, c.Gemini.BaseURL
	case models.ProviderOllama:
		cfg.Model, cfg.BaseURL = c.Ollama.Model, c.Ollama.BaseURL
	}
	return cfg, nil
}

// RetentionPolicy returns the store pruning caps.
func (c AppConfig) RetentionPolicy() memory_store.RetentionPolicy {
	return memory_store.RetentionPolicy{
		MaxMemories: c.Memory.MaxMemories,
		MaxLessons:  c.Memory.MaxLessons,
	}
}

// LogConfig logs the current configuration (without sensitive data)
func (c AppConfig) LogConfig(log logger.Logger) {
	provider, _ := c.ResolvedProvider()
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("assistant_name", c.Assistant.Name),
		logger.StringField("timezone", c.Assistant.Timezone),
		logger.StringField("llm_provider", string(provider)),
		logger.StringField("database_path", c.Database.Path),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.IntField("max_memories", c.Memory.MaxMemories),
		logger.IntField("max_lessons", c.Memory.MaxLessons),
		logger.IntField("token_budget", c.Memory.TokenBudget),
		logger.IntField("workers", c.Worker.Workers),
		logger.BoolField("digest_enabled", c.Digest.Enabled),
		logger.StringField("log_level", c.LogLevel),
		logger.StringField("log_format", c.LogFormat),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.BoolField("api_token_set", c.Security.APIToken != ""),
	)
}
