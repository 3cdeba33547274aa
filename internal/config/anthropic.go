package config

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	APIKey  string `env:"ANTHROPIC_API_KEY" yaml:"-"`
	Model   string `env:"CLAUDE_MODEL" yaml:"model"`
	BaseURL string `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
}
