package cmd

import (
	"github.com/grovetools/core/cli"
	"github.com/spf13/cobra"
)

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contextlang",
		Short: "Directive-driven, LLM-assisted code generation inside your source files.",
		Long: `contextlang scans files for directive tags, builds one generation task per file,
orders its prompts by the outputs they reference and splices the generated code
back into placeholder lines and output tag regions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.logToFile, "log", false, "Write logs to Context_Logs/ instead of the terminal")
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "Directory containing "+configFileHint)

	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newParseCmd())
	root.AddCommand(a.newWatchCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the command line with styled help and error output.
func Execute() error {
	a := newApp()
	defer a.close()
	return cli.Execute(a.rootCmd())
}
