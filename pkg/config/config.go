package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "contextlang.yml"
	DotEnvFileName = ".env"
)

// Providers understood by the generation client factory.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderCommand    = "command"
	ProviderMock       = "mock"
)

const DefaultProvider = ProviderOpenRouter

// Models used when none is configured.
var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-4o",
	ProviderOpenRouter: "openai/gpt-4o",
	ProviderGemini:     "gemini-2.5-flash",
}

// Environment variables read by ApplyEnv. LegacyAPIKeyEnv is the name used by
// earlier releases of the tool and is still honoured.
const (
	ProviderEnv      = "CONTEXTLANG_PROVIDER"
	ModelEnv         = "CONTEXTLANG_MODEL"
	APIKeyEnv        = "CONTEXTLANG_API_KEY"
	LegacyAPIKeyEnv  = "CONTEXT_CONFIG_Open_Ai_Api_Key"
	OpenAIKeyEnv     = "OPENAI_API_KEY"
	OpenRouterKeyEnv = "OPENROUTER_API_KEY"
	GeminiKeyEnv     = "GEMINI_API_KEY"
)

// Config holds the settings of a contextlang run.
type Config struct {
	Provider     string   `yaml:"provider,omitempty" jsonschema:"enum=openai,enum=openrouter,enum=gemini,enum=command,enum=mock,description=Generation backend"`
	Model        string   `yaml:"model,omitempty" jsonschema:"description=Model identifier passed to the provider"`
	APIKey       string   `yaml:"api_key,omitempty" jsonschema:"description=API key for network providers. Prefer the environment."`
	BaseURL      string   `yaml:"base_url,omitempty" jsonschema:"description=Override of the provider endpoint"`
	Command      []string `yaml:"command,omitempty" jsonschema:"description=Program and arguments run by the command provider"`
	SystemPrompt string   `yaml:"system_prompt,omitempty" jsonschema:"description=Path to a system prompt file. Empty uses the built-in prompt."`
	Ignore       []string `yaml:"ignore,omitempty" jsonschema:"description=Extra file or directory names skipped during discovery"`
	Jobs         int      `yaml:"jobs,omitempty" jsonschema:"minimum=0,description=Files processed in parallel. 0 or 1 is sequential."`
	Timeout      string   `yaml:"timeout,omitempty" jsonschema:"description=Per generation call timeout as a Go duration (e.g. 90s)"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: DefaultProvider,
		Jobs:     1,
	}
}

// Overrides are command line values. Each non-empty field beats both the
// file and the environment.
type Overrides struct {
	Provider string
	Model    string
	APIKey   string
}

// Load reads contextlang.yml from dir on top of the defaults and applies
// environment overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	return LoadWith(dir, Overrides{})
}

// LoadWith is Load followed by command line overrides. The API key is looked
// up for the final provider.
func LoadWith(dir string, o Overrides) (*Config, error) {
	cfg := Default()
	configPath := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	cfg.apply(o)
	return cfg, nil
}

// LoadDotEnv exports the variables of dir/.env that are not already set in
// the environment. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, DotEnvFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Provider-specific key
// variables only apply to their provider.
func (c *Config) ApplyEnv() {
	c.apply(Overrides{})
}

func (c *Config) apply(o Overrides) {
	c.Provider = firstNonEmpty(o.Provider, os.Getenv(ProviderEnv), c.Provider)
	c.Model = firstNonEmpty(o.Model, os.Getenv(ModelEnv), c.Model)
	if o.APIKey != "" {
		c.APIKey = o.APIKey
		return
	}
	c.applyKeyEnv()
}

func (c *Config) applyKeyEnv() {
	keyEnvs := []string{APIKeyEnv}
	switch c.Provider {
	case ProviderOpenAI:
		keyEnvs = append(keyEnvs, OpenAIKeyEnv, LegacyAPIKeyEnv)
	case ProviderOpenRouter:
		keyEnvs = append(keyEnvs, OpenRouterKeyEnv, LegacyAPIKeyEnv)
	case ProviderGemini:
		keyEnvs = append(keyEnvs, GeminiKeyEnv)
	}
	for _, env := range keyEnvs {
		if v := os.Getenv(env); v != "" {
			c.APIKey = v
			return
		}
	}
}

// Validate checks the configuration for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderGemini:
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("no API key configured for provider '%s': set %s or api_key in %s", c.Provider, APIKeyEnv, ConfigFileName)
		}
	case ProviderCommand:
		if len(c.Command) == 0 {
			return fmt.Errorf("provider 'command' requires a command in %s", ConfigFileName)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown provider '%s'", c.Provider)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout '%s': %w", c.Timeout, err)
	}
	return d, nil
}

// ModelName returns the configured model or the provider's default.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}

// Parallelism returns the number of files to process at once.
func (c *Config) Parallelism() int {
	if c.Jobs < 1 {
		return 1
	}
	return c.Jobs
}

// Schema returns the JSON Schema of the configuration file.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}
	schema := r.Reflect(&Config{})
	schema.Title = "contextlang configuration"
	schema.Description = "Configuration schema for " + ConfigFileName + "."
	return schema
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
