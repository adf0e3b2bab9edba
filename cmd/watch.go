package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/contextlang/pkg/discovery"
	"github.com/grovetools/contextlang/pkg/watcher"
	"github.com/spf13/cobra"
)

func (a *app) newWatchCmd() *cobra.Command {
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-parse files on save and report directive errors",
		Long: `Watches dir (default the working directory) and re-runs the parser and the
dependency resolver for every changed file. Nothing is generated; use this while
editing directives to see errors as soon as a file is saved.

Example:
  contextlang watch src --debounce 200`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd.OutOrStdout(), targetArg(args, ""), time.Duration(debounceMs)*time.Millisecond)
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 100, "Debounce interval in milliseconds")
	return cmd
}

func (a *app) runWatch(ctx context.Context, out io.Writer, dir string, debounce time.Duration) error {
	cfg, err := a.loadConfig(nil)
	if err != nil {
		return err
	}

	skip := append(append([]string{}, discovery.DefaultIgnore...), cfg.Ignore...)
	w, err := watcher.New(skip)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()
	if err := w.AddRecursive(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	rules, err := discovery.New(a.logger, cfg.Ignore).Filter(dir)
	if err != nil {
		return err
	}
	tasks, collector, err := a.parseTarget(cfg, dir)
	if err != nil {
		return err
	}
	a.logger.Infof("Watching %s: %d task(s), %d error(s)", dir, len(tasks), collector.Len())
	if err := report(out, collector); err != nil {
		a.logger.Warn(err.Error())
	}

	debouncer := watcher.NewDebouncer(debounce, func(changed []string) {
		a.reparse(out, rules, changed)
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			// Handle new directory creation (add to watcher)
			if event.Has(fsnotify.Create) && w.HandleNewDirectory(event) {
				continue
			}
			if !watcher.IsChange(event) || !w.IsRelevantFile(event.Name) {
				continue
			}
			debouncer.Add(event.Name)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.WithError(err).Error("Watcher error")
		}
	}
}

// reparse parses and reports the changed paths that discovery would accept.
// It reports whether any path was parsed.
func (a *app) reparse(out io.Writer, rules *discovery.Filter, changed []string) bool {
	var paths []string
	for _, path := range changed {
		if rules.Allowed(path) {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return false
	}
	tasks, collector := a.parseFiles(paths)
	a.logger.Infof("Re-parsed %d file(s): %d task(s), %d error(s)", len(paths), len(tasks), collector.Len())
	if err := report(out, collector); err != nil {
		a.logger.Warn(err.Error())
	}
	return true
}
