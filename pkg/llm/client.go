// Package llm holds the generation backends. Every backend takes the assembled
// prompt text and the prompt name and answers with a JSON envelope of the form
// {"code": "..."}.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/grovetools/contextlang/pkg/config"
	"github.com/sirupsen/logrus"
)

// Client generates code for one prompt.
type Client interface {
	Generate(ctx context.Context, prompt, promptName string) (string, error)
}

// New builds the client selected by cfg.Provider. cfg is expected to have
// passed Validate.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Client, error) {
	system, err := LoadSystemPrompt(cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	var client Client
	switch cfg.Provider {
	case config.ProviderMock:
		client = NewMock()
	case config.ProviderCommand:
		client = NewCommand(cfg.Command, system, logger)
	case config.ProviderOpenAI:
		client = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.ModelName(), system, logger)
	case config.ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		client = NewOpenAI(cfg.APIKey, baseURL, cfg.ModelName(), system, logger)
	case config.ProviderGemini:
		client, err = NewGemini(ctx, cfg.APIKey, cfg.BaseURL, cfg.ModelName(), system, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown provider '%s'", cfg.Provider)
	}

	logger.Debugf("Using %s generation backend (model %s)", cfg.Provider, cfg.ModelName())
	if timeout > 0 {
		client = WithTimeout(client, timeout)
	}
	return client, nil
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every Generate call of next by d.
func WithTimeout(next Client, d time.Duration) Client {
	return &timeoutClient{next: next, timeout: d}
}

func (c *timeoutClient) Generate(ctx context.Context, prompt, promptName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Generate(ctx, prompt, promptName)
}
