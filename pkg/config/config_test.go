package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{ProviderEnv, ModelEnv, APIKeyEnv, LegacyAPIKeyEnv, OpenAIKeyEnv, OpenRouterKeyEnv, GeminiKeyEnv} {
		t.Setenv(env, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "openai/gpt-4o", cfg.ModelName())

	cfg.Provider = ProviderGemini
	assert.Equal(t, "gemini-2.5-flash", cfg.ModelName())
	cfg.Model = "gemini-pro"
	assert.Equal(t, "gemini-pro", cfg.ModelName())
}

func TestLoad_ReadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `provider: command
model: local
command: ["llm-wrapper", "--json"]
ignore: [vendor, dist]
jobs: 4
timeout: 90s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ProviderCommand, cfg.Provider)
	assert.Equal(t, "local", cfg.Model)
	assert.Equal(t, []string{"llm-wrapper", "--json"}, cfg.Command)
	assert.Equal(t, []string{"vendor", "dist"}, cfg.Ignore)
	assert.Equal(t, 4, cfg.Parallelism())
	require.NoError(t, cfg.Validate())

	d, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("provider: [unclosed"), 0644))
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestApplyEnv_ProviderSpecificKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv(LegacyAPIKeyEnv, "legacy")
	t.Setenv(GeminiKeyEnv, "gem")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "legacy", cfg.APIKey)

	t.Setenv(OpenRouterKeyEnv, "router")
	cfg = Default()
	cfg.ApplyEnv()
	assert.Equal(t, "router", cfg.APIKey)

	t.Setenv(ProviderEnv, ProviderGemini)
	cfg = Default()
	cfg.ApplyEnv()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gem", cfg.APIKey)

	t.Setenv(APIKeyEnv, "generic")
	cfg = Default()
	cfg.ApplyEnv()
	assert.Equal(t, "generic", cfg.APIKey)
}

func TestApplyEnv_KeepsFileKeyWithoutEnv(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.APIKey = "from-file"
	t.Setenv(ModelEnv, "other/model")
	cfg.ApplyEnv()
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "other/model", cfg.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "mock needs nothing", cfg: Config{Provider: ProviderMock}},
		{name: "network provider without key", cfg: Config{Provider: ProviderOpenAI}, wantErr: "no API key"},
		{name: "gemini with key", cfg: Config{Provider: ProviderGemini, APIKey: "k"}},
		{name: "command without argv", cfg: Config{Provider: ProviderCommand}, wantErr: "requires a command"},
		{name: "unknown provider", cfg: Config{Provider: "carrier-pigeon"}, wantErr: "unknown provider"},
		{name: "negative jobs", cfg: Config{Provider: ProviderMock, Jobs: -1}, wantErr: "jobs must not be negative"},
		{name: "bad timeout", cfg: Config{Provider: ProviderMock, Timeout: "soon"}, wantErr: "invalid timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_UsesYAMLNames(t *testing.T) {
	schema := Schema()
	require.NotNil(t, schema.Properties)
	_, ok := schema.Properties.Get("api_key")
	assert.True(t, ok)
	_, ok = schema.Properties.Get("system_prompt")
	assert.True(t, ok)
	_, ok = schema.Properties.Get("APIKey")
	assert.False(t, ok)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty.
	require.NoError(t, os.Unsetenv(LegacyAPIKeyEnv))
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFileName), []byte(LegacyAPIKeyEnv+"=from-dotenv\n"), 0644))
	require.NoError(t, LoadDotEnv(dir))

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "from-dotenv", cfg.APIKey)
}

func TestLoadWith_OverridesBeatEnvAndFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("provider: command\nmodel: local\n"), 0644))
	t.Setenv(ProviderEnv, ProviderGemini)
	t.Setenv(ModelEnv, "env-model")
	t.Setenv(GeminiKeyEnv, "gemini-key")
	t.Setenv(OpenAIKeyEnv, "openai-key")

	cfg, err := LoadWith(dir, Overrides{Provider: ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, "openai-key", cfg.APIKey, "key is looked up for the final provider")

	cfg, err = LoadWith(dir, Overrides{Model: "flag-model", APIKey: "flag-key"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "flag-model", cfg.Model)
	assert.Equal(t, "flag-key", cfg.APIKey)
}
