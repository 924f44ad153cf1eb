package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/app"
	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/index"
	"github.com/Aman-CERP/pagesearch/internal/ui"
)

type reindexOptions struct {
	group   int64
	workers int
	atomic  bool
	noTUI   bool
	noColor bool
}

func newReindexCmd(global *globalOptions) *cobra.Command {
	var opts reindexOptions

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index",
		Long: `Rebuild the page search index from the content tree.

Every page is checked in ascending ID order. A page is indexed only when it
has an approved version, is not a system page, is not excluded from search
and can be read by the permission group (default: the configured group,
normally Guest). Pages that fail individually are reported and skipped;
the run continues.

With --atomic the previous index stays searchable until the rebuild
commits. Otherwise the index is emptied first and fills up as pages are
written.`,
		Example: `  pagesearch reindex
  pagesearch reindex --group 2 --workers 4
  pagesearch reindex --atomic --no-tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := global.openApp(func(cfg *config.Config) {
				if cmd.Flags().Changed("workers") {
					cfg.Index.Workers = opts.workers
				}
				if cmd.Flags().Changed("atomic") {
					cfg.Index.AtomicRebuild = opts.atomic
				}
			})
			if err != nil {
				return err
			}
			defer closeApp(a)

			return runReindex(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.group, "group", 0, "Permission group used as the visibility test (default: index.group_id)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 1, "Pages evaluated concurrently")
	cmd.Flags().BoolVar(&opts.atomic, "atomic", false, "Keep the previous index searchable until the rebuild commits")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command, a *app.App, opts reindexOptions) error {
	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithSiteDir(a.Root),
	)
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("progress_renderer_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StagePreparing,
		Message: "Loading pages from " + a.ContentPath(),
	})

	summary, err := a.Reindex(ctx, opts.group, index.WithProgressFunc(progressBridge(renderer)))
	if err != nil {
		return err
	}

	stats := ui.CompletionStats{
		GroupID:  summary.GroupID,
		Backend:  a.Config.Index.Backend,
		Atomic:   summary.Atomic,
		Indexed:  summary.Indexed,
		Skipped:  make(map[string]int, len(summary.Skipped)),
		Failed:   summary.Failed,
		Duration: summary.Duration,
	}
	for reason, n := range summary.Skipped {
		stats.Skipped[string(reason)] = n
	}
	renderer.Complete(stats)

	if summary.Failed > 0 {
		slog.Warn("reindex_pages_failed", slog.Int("failed", summary.Failed))
	}
	return nil
}

// progressBridge forwards indexer events to the renderer.
func progressBridge(renderer ui.Renderer) func(index.Event) {
	return func(ev index.Event) {
		o := ev.Outcome
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: ev.Current,
			Total:   ev.Total,
			Path:    o.Path,
		})

		switch {
		case o.Status == index.StatusFailed:
			renderer.AddError(ui.ErrorEvent{Path: pageLabel(o), Err: o.Err})
		case o.Err != nil:
			renderer.AddError(ui.ErrorEvent{Path: pageLabel(o), Err: o.Err, IsWarn: true})
		}

		if ev.Current == ev.Total {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageCommitting,
				Current: ev.Total,
				Total:   ev.Total,
			})
		}
	}
}

func pageLabel(o index.Outcome) string {
	if o.Path != "" {
		return o.Path
	}
	return fmt.Sprintf("page %d", o.PageID)
}
