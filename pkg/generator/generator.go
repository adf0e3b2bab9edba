// Package generator runs resolved tasks: it assembles each prompt, asks the
// generation backend for code and splices the result back into the file.
package generator

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/grovetools/contextlang/pkg/aggregator"
	"github.com/grovetools/contextlang/pkg/llm"
	"github.com/grovetools/contextlang/pkg/parser"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options controls a batch run.
type Options struct {
	// DryRun assembles and logs prompts without calling the backend or
	// writing files.
	DryRun bool
	// Jobs is the number of files processed at once. Prompts inside one file
	// always run one after another.
	Jobs int
}

// Result describes what happened to one task.
type Result struct {
	File    string
	Applied []string
	Skipped []string
	// Prompts maps the prompt names that were sent to their assembled text.
	Prompts map[string]string
	Err     error
}

// Generator applies generated code to task files.
type Generator struct {
	logger *logrus.Logger
	client llm.Client
	opts   Options
}

func New(logger *logrus.Logger, client llm.Client, opts Options) *Generator {
	return &Generator{logger: logger, client: client, opts: opts}
}

// Run processes every task. A failing task never stops the others; its error
// is returned next to the results, attributed to the task's file.
func (g *Generator) Run(ctx context.Context, tasks []*parser.Task) ([]Result, []aggregator.Error) {
	runLog := g.logger.WithField("run_id", uuid.NewString())
	runLog.Infof("Generating code for %d file(s)", len(tasks))

	results := make([]Result, len(tasks))
	collector := aggregator.New()

	jobs := g.opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	var eg errgroup.Group
	eg.SetLimit(jobs)
	for i, task := range tasks {
		eg.Go(func() error {
			log := runLog.WithField("file", task.RelPath)
			result := g.RunTask(ctx, log, task)
			if result.Err != nil {
				log.WithError(result.Err).Errorf("Error while processing task from file %s", task.RelPath)
				collector.Add(task.RelPath, result.Err)
			}
			results[i] = result
			return nil
		})
	}
	_ = eg.Wait()

	return results, collector.Errors()
}

// RunTask walks the task's prompts in execution order. The first failure
// aborts the remaining prompts of the task and is stored in Result.Err.
func (g *Generator) RunTask(ctx context.Context, log *logrus.Entry, task *parser.Task) Result {
	result := Result{File: task.RelPath, Prompts: make(map[string]string)}

	if !task.HasOutputs() {
		log.Debug("No prompt outputs or output tags in task, skipping")
		return result
	}

	for _, name := range task.ExecutionOrder() {
		prompt, ok := task.Prompt(name)
		if !ok {
			continue
		}
		_, hasTag := task.TagOutput(name)
		if !task.IsPlaceholder(name) && !hasTag {
			log.Warnf("No output location found for prompt %s", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		content, err := os.ReadFile(task.FilePath)
		if err != nil {
			result.Err = fmt.Errorf("failed to read %s: %w", task.RelPath, err)
			return result
		}
		text, err := Assemble(task, prompt, string(content))
		if err != nil {
			result.Err = fmt.Errorf("failed to assemble prompt '%s': %w", name, err)
			return result
		}
		result.Prompts[name] = text
		log.Debugf("Generated prompt for %s:\n%s", name, text)

		if g.opts.DryRun {
			log.Infof("Dry run: assembled prompt %s (%d chars)", name, len(text))
			result.Skipped = append(result.Skipped, name)
			continue
		}

		log.Infof("Generating prompt %s", name)
		response, err := g.client.Generate(ctx, text, name)
		if err != nil {
			result.Err = fmt.Errorf("generation failed for prompt '%s': %w", name, err)
			return result
		}
		code, err := ExtractCode(response)
		if err != nil {
			result.Err = fmt.Errorf("invalid response for prompt '%s': %w", name, err)
			return result
		}
		log.Debugf("Generated code for %s:\n%s", name, code)
		if code == "" {
			log.Infof("Empty code returned for prompt %s, nothing to apply", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		applied, err := g.apply(task, name, code)
		if err != nil {
			result.Err = fmt.Errorf("failed to apply prompt '%s': %w", name, err)
			return result
		}
		if !applied {
			log.Warnf("No output location found for prompt %s", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}
		log.Infof("Applied prompt %s", name)
		result.Applied = append(result.Applied, name)
	}
	return result
}

// apply splices code into the placeholder lines and/or the output tag of
// prompt name, re-reading the file first.
func (g *Generator) apply(task *parser.Task, name, code string) (bool, error) {
	data, err := os.ReadFile(task.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", task.RelPath, err)
	}
	content := string(data)
	applied := false

	if task.IsPlaceholder(name) {
		var found bool
		content, found = ReplacePlaceholder(content, name, code)
		applied = applied || found
	}
	if tag, ok := task.TagOutput(name); ok {
		content, err = ReplaceTag(content, tag, code)
		if err != nil {
			return false, err
		}
		applied = true
	}
	if !applied {
		return false, nil
	}
	return true, writeFile(task.FilePath, content)
}
