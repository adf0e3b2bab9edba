package cmd

import (
	"fmt"

	"github.com/grovetools/contextlang/pkg/generator"
	"github.com/grovetools/contextlang/pkg/llm"
	"github.com/spf13/cobra"
)

func (a *app) newRunCmd() *cobra.Command {
	var backend backendFlags
	var parserOnly, dryRun bool
	var filePath string

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Parse directives and generate code into the files",
		Long: `Scans path (a file or a directory, default the working directory) for directives,
orders each file's prompts and sends them to the generation backend, writing the
results into placeholder lines and output tags.

Examples:
  contextlang run                         # Every file under the working directory
  contextlang run src/server.go           # A single file
  contextlang run --parser                # Only parse and report
  contextlang run --dry-run --debug       # Show assembled prompts, change nothing
  contextlang run --mock                  # Exercise the pipeline without a model`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(&backend)
			if err != nil {
				return err
			}
			tasks, collector, err := a.parseTarget(cfg, targetArg(args, filePath))
			if err != nil {
				return err
			}
			if parserOnly {
				for _, task := range tasks {
					fmt.Fprint(cmd.OutOrStdout(), task.String())
				}
				return report(cmd.OutOrStdout(), collector)
			}

			var client llm.Client = llm.NewMock()
			if !dryRun {
				if err := cfg.Validate(); err != nil {
					return err
				}
				client, err = llm.New(cmd.Context(), cfg, a.logger)
				if err != nil {
					return fmt.Errorf("failed to create generation backend: %w", err)
				}
			}

			gen := generator.New(a.logger, client, generator.Options{DryRun: dryRun, Jobs: cfg.Parallelism()})
			results, errs := gen.Run(cmd.Context(), tasks)
			collector.Append(errs...)

			for _, r := range results {
				if dryRun {
					for _, name := range r.Skipped {
						if text, ok := r.Prompts[name]; ok {
							fmt.Fprintf(cmd.OutOrStdout(), "=== %s: %s ===\n%s\n\n", r.File, name, text)
						}
					}
					continue
				}
				a.logger.WithField("file", r.File).Infof("%d prompt(s) applied, %d skipped", len(r.Applied), len(r.Skipped))
			}

			if err := report(cmd.OutOrStdout(), collector); err != nil {
				return err
			}
			a.logger.Info("Processing successful")
			return nil
		},
	}

	backend.register(cmd)
	cmd.Flags().BoolVar(&parserOnly, "parser", false, "Parser only mode: report tasks and errors, generate nothing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Assemble and print prompts without calling the backend or writing files")
	cmd.Flags().StringVar(&filePath, "filepath", "", "File or directory to process")
	cmd.Flags().MarkHidden("filepath")
	return cmd
}
