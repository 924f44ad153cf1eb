package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/app"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/output"
	"github.com/Aman-CERP/pagesearch/internal/watcher"
)

type watchOptions struct {
	group        int64
	skipInitial  bool
	forcePolling bool
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reindex whenever the content changes",
		Long: `Watch the content tree and rebuild the index after every change.

Changes are debounced (watch.debounce, default 500ms) so that a burst of
edits triggers one reindex. The content is reloaded from disk before each
run. A change that arrives while another process is reindexing is logged
and picked up by the next change.`,
		Example: `  pagesearch watch
  pagesearch watch --skip-initial`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := global.openApp(nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return runWatch(ctx, cmd.OutOrStdout(), a, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.group, "group", 0, "Permission group used as the visibility test (default: index.group_id)")
	cmd.Flags().BoolVar(&opts.skipInitial, "skip-initial", false, "Do not reindex before the first change")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll for changes instead of using file system notifications")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, a *app.App, opts watchOptions) error {
	debounce, err := a.Config.DebounceDuration()
	if err != nil {
		return errors.ConfigError("invalid watch.debounce", err)
	}

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = debounce
	wopts.ForcePolling = opts.forcePolling
	w, err := watcher.New(wopts)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	status := output.New(out)

	if !opts.skipInitial {
		reindexOnChange(ctx, status, a, opts.group, nil)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx, a.ContentPath())
	}()
	defer func() { _ = w.Stop() }()

	status.Statusf("👀", "Watching %s (%s)", a.ContentPath(), w.Mode())

	for {
		select {
		case <-ctx.Done():
			status.Status("👋", "Stopped watching")
			return nil
		case err := <-errCh:
			if err != nil && !stderrors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return nil
		case err := <-w.Errors():
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case batch := <-w.Events():
			reindexOnChange(ctx, status, a, opts.group, batch)
		}
	}
}

// reindexOnChange reloads the content and rebuilds the index. Failures are
// reported and the watch continues.
func reindexOnChange(ctx context.Context, w *output.Writer, a *app.App, group int64, batch []watcher.FileEvent) {
	if len(batch) > 0 {
		slog.Info("content_changed", slog.Int("events", len(batch)), slog.String("first", batch[0].Path))
	}

	if err := a.Reload(); err != nil {
		slog.Error("content_reload_failed", errors.LogAttrs(err)...)
		w.Errorf("Content reload failed: %v", err)
		return
	}

	summary, err := a.Reindex(ctx, group)
	switch {
	case err == nil:
		w.Successf("Reindexed: %d indexed, %d skipped, %d failed (%s)",
			summary.Indexed, summary.SkippedTotal(), summary.Failed, summary.Duration.Round(time.Millisecond))
	case errors.GetCode(err) == errors.ErrCodeReindexInProgress:
		slog.Warn("reindex_busy", slog.Int("events", len(batch)))
		w.Warning("Another reindex is running; this change will be picked up by the next one")
	case stderrors.Is(err, context.Canceled):
	default:
		slog.Error("reindex_failed", errors.LogAttrs(err)...)
		w.Errorf("Reindex failed: %v", err)
	}
}
