package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/app"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/output"
	"github.com/Aman-CERP/pagesearch/internal/search"
	"github.com/Aman-CERP/pagesearch/internal/ui"
)

type searchOptions struct {
	paths    []string
	page     int
	pageSize int
	format   string
	noColor  bool
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <expression>",
		Short: "Search the indexed pages",
		Long: `Search the indexed pages by keyword.

Terms are matched against page names, descriptions and content. Prefix a
term with + to require it, with - to exclude it, and quote a phrase to
match it exactly. Results are ranked by relevance, newest first on ties.`,
		Example: `  pagesearch search pricing
  pagesearch search '+pricing -enterprise'
  pagesearch search '"team plan"' --path /pricing --path /docs
  pagesearch search pricing --page 2 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return errors.ValidationError(fmt.Sprintf("unknown output format %q", opts.format), nil).
					WithSuggestion("Use --format text or --format json")
			}

			a, err := global.openApp(nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return runSearch(cmd.Context(), cmd, a, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.paths, "path", "p", nil, "Restrict to a path prefix such as /blog (repeatable)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page, starting at 1")
	cmd.Flags().IntVarP(&opts.pageSize, "limit", "n", 0, "Results per page (default: search.page_size)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app.App, query string, opts searchOptions) error {
	slog.Debug("search_started", slog.String("query", query), slog.Int("paths", len(opts.paths)))

	out := cmd.OutOrStdout()
	w := output.NewWithColor(out, !opts.noColor && !ui.DetectNoColor() && ui.IsTTY(out))

	if stats, err := a.Index.Stats(ctx); err == nil && stats.LastRebuild.IsZero() && opts.format == "text" {
		w.Warning("The index has never been built. Run 'pagesearch reindex' first.")
	}

	resp, err := a.Searcher.Search(ctx, search.Request{
		Query:    query,
		Paths:    opts.paths,
		Page:     opts.page,
		PageSize: opts.pageSize,
	})
	if err != nil {
		return err
	}

	slog.Debug("search_complete", slog.Int("total", resp.Total), slog.String("took", resp.Took))

	if opts.format == "json" {
		return w.JSON(resp)
	}
	w.Results(resp)
	return nil
}
