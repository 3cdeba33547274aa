package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/models"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
)

// clearKeys keeps host credentials out of provider resolution.
func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_PROVIDER"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "friday-assistant", cfg.ServiceName)
	assert.Equal(t, "F.R.I.D.A.Y.", cfg.Assistant.Name)
	assert.Equal(t, "friday", cfg.Assistant.WakeWord)
	assert.Equal(t, "Europe/Istanbul", cfg.Assistant.Timezone)
	assert.Equal(t, 3, cfg.Assistant.HistoryTurns)
	assert.Equal(t, ProviderAuto, cfg.LLM.Provider)
	assert.Equal(t, 300, cfg.LLM.MaxOutputTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, memory_store.RetentionPolicy{}, cfg.RetentionPolicy(), "retention is opt-in")
	assert.Equal(t, 20, cfg.Memory.MemoryLimit)
	assert.Equal(t, 0, cfg.Memory.LessonLimit)
	assert.Equal(t, "55 23 * * *", cfg.Digest.Schedule)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, "WAL", cfg.Database.JournalMode)
	assert.InDelta(t, 1.0, cfg.Security.ChatRateLimit, 1e-9)
	assert.Equal(t, 5, cfg.Security.ChatBurst)

	provider, err := cfg.ResolvedProvider()
	require.NoError(t, err)
	assert.Equal(t, models.ProviderNone, provider)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	clearKeys(t)
	t.Setenv("MEMORY_MAX_LESSONS", "12")

	path := filepath.Join(t.TempDir(), "friday.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
assistant:
  name: Karen
  timezone: UTC
llm:
  provider: ollama
ollama:
  model: mistral
memory:
  max_memories: 50
  max_lessons: 40
database:
  path: /tmp/friday-test.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Karen", cfg.Assistant.Name)
	assert.Equal(t, 50, cfg.Memory.MaxMemories)
	assert.Equal(t, 12, cfg.Memory.MaxLessons)
	assert.Equal(t, "/tmp/friday-test.db", cfg.Database.Path)

	mc, err := cfg.ModelConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderOllama, mc.Provider)
	assert.Equal(t, "mistral", mc.Model)
	assert.Equal(t, "http://localhost:11434/v1", mc.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestResolvedProvider(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(c *AppConfig)
		expected models.Provider
		wantErr  bool
	}{
		{name: "auto without keys is offline", mutate: func(c *AppConfig) {}, expected: models.ProviderNone},
		{name: "auto prefers gemini", mutate: func(c *AppConfig) {
			c.Gemini.APIKey, c.OpenAI.APIKey = "g", "o"
		}, expected: models.ProviderGemini},
		{name: "auto falls back to openai", mutate: func(c *AppConfig) {
			c.OpenAI.APIKey, c.Anthropic.APIKey = "o", "a"
		}, expected: models.ProviderOpenAI},
		{name: "auto falls back to claude", mutate: func(c *AppConfig) {
			c.Anthropic.APIKey = "a"
		}, expected: models.ProviderClaude},
		{name: "explicit provider wins", mutate: func(c *AppConfig) {
			c.LLM.Provider, c.Gemini.APIKey = "claude", "g"
		}, expected: models.ProviderClaude},
		{name: "unknown provider", mutate: func(c *AppConfig) {
			c.LLM.Provider = "watson"
		}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := AppConfig{LLM: LLMConfig{Provider: ProviderAuto}}
			tc.mutate(&cfg)

			got, err := cfg.ResolvedProvider()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestModelConfig_CarriesProviderSettings(t *testing.T) {
	cfg := AppConfig{
		LLM:       LLMConfig{Provider: "openai", Timeout: 5 * time.Second, MaxRetries: 1},
		OpenAI:    OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: "http://proxy"},
		Anthropic: AnthropicConfig{APIKey: "ignored"},
	}

	mc, err := cfg.ModelConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderOpenAI, mc.Provider)
	assert.Equal(t, "sk-test", mc.APIKey)
	assert.Equal(t, "gpt-4o", mc.Model)
	assert.Equal(t, "http://proxy", mc.BaseURL)
	assert.Equal(t, 5*time.Second, mc.Timeout)
	assert.Equal(t, 1, mc.MaxRetries)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	clearKeys(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.LLM.Temperature = 3
	cfg.Assistant.Timezone = "Mars/Olympus"
	cfg.Worker.Workers = 0
	cfg.Digest.Schedule = "every day"
	cfg.Storage.Backend = "ftp"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"temperature", "timezone", "workers", "digest schedule", "storage backend"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRetentionPolicy(t *testing.T) {
	cfg := AppConfig{Memory: MemoryConfig{MaxMemories: 10, MaxLessons: 4}}
	rp := cfg.RetentionPolicy()
	assert.Equal(t, 10, rp.MaxMemories)
	assert.Equal(t, 4, rp.MaxLessons)
}

func TestStorageManagerConfig_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	sc, err := StorageConfig{Backend: "local", LocalDir: "~/friday/data"}.ManagerConfig()
	require.NoError(t, err)
	assert.Equal(t, storage_manager.BackendLocal, sc.Backend)
	assert.Equal(t, filepath.Join(home, "friday/data"), sc.BaseDir)
}

func TestAssistantLocation(t *testing.T) {
	loc, err := AssistantConfig{Timezone: "Europe/Istanbul"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Istanbul", loc.String())

	loc, err = AssistantConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
