package config

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey  string `env:"GOOGLE_API_KEY" yaml:"-"`
	Model   string `env:"GEMINI_MODEL" yaml:"model"`
	BaseURL string `env:"GEMINI_BASE_URL" yaml:"base_url"`
}
