package config

// OpenAIConfig holds OpenAI-specific configuration. An empty Model uses
// the provider default.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY" yaml:"-"`
	Model   string `env:"OPENAI_MODEL" yaml:"model"`
	BaseURL string `env:"OPENAI_BASE_URL" yaml:"base_url"`
}

// OllamaConfig points at a local Ollama server's OpenAI-compatible API
type OllamaConfig struct {
	BaseURL string `env:"OLLAMA_BASE_URL" yaml:"base_url" default:"http://localhost:11434/v1"`
	Model   string `env:"OLLAMA_MODEL" yaml:"model"`
}
