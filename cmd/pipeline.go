package cmd

import (
	"fmt"
	"io"

	"github.com/grovetools/contextlang/pkg/aggregator"
	"github.com/grovetools/contextlang/pkg/config"
	"github.com/grovetools/contextlang/pkg/discovery"
	"github.com/grovetools/contextlang/pkg/parser"
	"github.com/grovetools/contextlang/pkg/resolver"
	"github.com/spf13/cobra"
)

// backendFlags override the configured generation backend.
type backendFlags struct {
	provider string
	model    string
	apiKey   string
	mock     bool
	jobs     int
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Generation backend: openai, openrouter, gemini, command or mock")
	cmd.Flags().StringVar(&f.model, "model", "", "Model passed to the backend")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key for the backend")
	cmd.Flags().StringVar(&f.apiKey, "openai_key", "", "API key for the backend")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "Use the mock backend instead of a model")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "Files processed in parallel")
	cmd.Flags().MarkHidden("openai_key")
}

// loadConfig reads .env and contextlang.yml and applies flag overrides.
func (a *app) loadConfig(f *backendFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(a.configDir); err != nil {
		return nil, err
	}
	var o config.Overrides
	if f != nil {
		o = config.Overrides{Provider: f.provider, Model: f.model, APIKey: f.apiKey}
		if f.mock {
			o.Provider = config.ProviderMock
		}
	}
	cfg, err := config.LoadWith(a.configDir, o)
	if err != nil {
		return nil, fmt.Errorf("failed to load contextlang config: %w", err)
	}
	if f != nil && f.jobs > 0 {
		cfg.Jobs = f.jobs
	}
	return cfg, nil
}

// parseTarget discovers files under target and turns them into resolved
// tasks. Tasks whose prompts form a cycle are reported and dropped.
func (a *app) parseTarget(cfg *config.Config, target string) ([]*parser.Task, *aggregator.Collector, error) {
	files, err := discovery.New(a.logger, cfg.Ignore).Find(target)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debugf("Processing %d file(s)", len(files))
	tasks, collector := a.parseFiles(files)
	return tasks, collector, nil
}

func (a *app) parseFiles(files []string) ([]*parser.Task, *aggregator.Collector) {
	collector := aggregator.New()
	tasks, errs := parser.New(a.logger, ".").ParseFiles(files)
	collector.Append(errs...)

	r := resolver.New(a.logger)
	var resolved []*parser.Task
	for _, task := range tasks {
		if err := r.Resolve(task); err != nil {
			a.logger.WithField("file", task.RelPath).WithError(err).Error("Failed to order prompts")
			collector.Add(task.RelPath, err)
			continue
		}
		a.logger.WithField("file", task.RelPath).Debugf("Task:\n%s", task)
		resolved = append(resolved, task)
	}
	return resolved, collector
}

// report renders the grouped errors and turns them into a command error.
func report(w io.Writer, collector *aggregator.Collector) error {
	errs := collector.Errors()
	if err := aggregator.Render(w, errs); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d error(s) reported in %d file(s)", len(errs), len(aggregator.Group(errs)))
	}
	return nil
}

func targetArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	if fallback != "" {
		return fallback
	}
	return "."
}
