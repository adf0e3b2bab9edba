package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/contextlang/pkg/aggregator"
	"github.com/grovetools/contextlang/pkg/parser"
	"github.com/spf13/cobra"
)

type promptReport struct {
	Name         string   `json:"name"`
	Line         int      `json:"line"`
	Dependencies []string `json:"dependencies,omitempty"`
	Placeholder  bool     `json:"placeholder"`
	Tag          string   `json:"tag,omitempty"`
}

type taskReport struct {
	File          string         `json:"file"`
	GlobalContext string         `json:"global_context,omitempty"`
	Variables     []string       `json:"variables,omitempty"`
	Prompts       []promptReport `json:"prompts"`
	Order         []string       `json:"order"`
	Layers        [][]string     `json:"layers"`
}

type parseReport struct {
	Tasks  []taskReport       `json:"tasks"`
	Errors []aggregator.Error `json:"errors"`
}

func newTaskReport(task *parser.Task) taskReport {
	tr := taskReport{
		File:          task.RelPath,
		GlobalContext: task.GlobalContext,
		Order:         task.Order,
		Layers:        task.Layers,
	}
	for _, v := range task.Variables {
		tr.Variables = append(tr.Variables, v.Name)
	}
	for _, p := range task.Prompts {
		tag, _ := task.TagOutput(p.Name)
		tr.Prompts = append(tr.Prompts, promptReport{
			Name:         p.Name,
			Line:         p.Line,
			Dependencies: p.Dependencies,
			Placeholder:  task.IsPlaceholder(p.Name),
			Tag:          tag,
		})
	}
	return tr
}

func (a *app) newParseCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "parse [path]",
		Short: "Parse directives and show tasks, outputs and prompt order",
		Long: `Runs the parser and the dependency resolver without generating anything.

Examples:
  contextlang parse
  contextlang parse main.py --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			tasks, collector, err := a.parseTarget(cfg, targetArg(args, ""))
			if err != nil {
				return err
			}

			if !jsonOutput {
				for _, task := range tasks {
					fmt.Fprint(cmd.OutOrStdout(), task.String())
				}
				return report(cmd.OutOrStdout(), collector)
			}

			doc := parseReport{Tasks: []taskReport{}, Errors: collector.Errors()}
			for _, task := range tasks {
				doc.Tasks = append(doc.Tasks, newTaskReport(task))
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal parse report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if len(doc.Errors) > 0 {
				return fmt.Errorf("%d error(s) reported", len(doc.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the parse result as JSON")
	return cmd
}
