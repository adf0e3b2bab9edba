package cmd

import (
	"github.com/grovetools/contextlang/internal/scaffold"
	"github.com/spf13/cobra"
)

func (a *app) newInitCmd() *cobra.Command {
	var opts scaffold.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a contextlang.yml in the config directory",
		Long: `Creates a default contextlang.yml and, with --example, a small file showing every
directive. Adds Context_Logs/ to an existing .gitignore.

It will not overwrite an existing configuration.

Examples:
  contextlang init
  contextlang init --provider gemini --model gemini-2.5-pro
  contextlang init --example`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return scaffold.Init(a.configDir, opts, a.logger)
		},
	}

	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Generation backend to configure")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model to configure")
	cmd.Flags().BoolVar(&opts.Example, "example", false, "Also write an example directive file")
	return cmd
}
