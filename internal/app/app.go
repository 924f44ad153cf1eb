// Package app assembles the page search components for one project: the
// content tree, the search index, the indexer, the searcher and the
// telemetry that backs status reports. Commands open an App, use it and
// close it; nothing here is global.
package app

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/pagesearch/internal/blocks"
	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/content"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/index"
	"github.com/Aman-CERP/pagesearch/internal/mcp"
	"github.com/Aman-CERP/pagesearch/internal/metrics"
	"github.com/Aman-CERP/pagesearch/internal/permission"
	"github.com/Aman-CERP/pagesearch/internal/search"
	"github.com/Aman-CERP/pagesearch/internal/store"
	"github.com/Aman-CERP/pagesearch/internal/telemetry"
	"github.com/Aman-CERP/pagesearch/internal/ui"
)

// App holds the open resources of one project.
type App struct {
	Config *config.Config
	Root   string

	Files     *content.FileStore
	Content   *content.CachedStore
	Index     store.Index
	Indexer   *index.Indexer
	Searcher  *search.Searcher
	Telemetry *telemetry.QueryMetrics
	Metrics   *metrics.Metrics

	meta    *sql.DB
	history *telemetry.SQLiteMetricsStore
}

// Open builds every component from cfg. Relative paths in cfg resolve
// against root.
func Open(cfg *config.Config, root string) (*App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid configuration", err).
			WithSuggestion("Run 'pagesearch config show' to inspect the effective configuration")
	}

	a := &App{Config: cfg, Root: root}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	contentPath := cfg.ContentPath(root)
	files, err := content.NewFileStore(contentPath)
	if err != nil {
		return nil, errors.New(errors.ErrCodeContentUnavailable, "failed to load site content", err).
			WithDetail("path", contentPath).
			WithSuggestion("Check content.path in " + config.ProjectConfigName)
	}
	a.Files = files
	a.Content = content.NewCachedStore(files, cfg.Content.CacheSize)

	dataDir := cfg.DataPath(root)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.New(errors.ErrCodeIndexWrite, "failed to create data directory", err).
			WithDetail("path", dataDir)
	}

	idx, err := store.NewIndex(dataDir, cfg.Index.Backend)
	if err != nil {
		code := errors.ErrCodeEngineUnavailable
		if stderrors.Is(err, store.ErrUnknownBackend) {
			code = errors.ErrCodeUnknownBackend
		}
		return nil, errors.New(code, "failed to open search index", err).
			WithDetail("backend", cfg.Index.Backend)
	}
	a.Index = idx

	meta, err := store.OpenMetaDB(dataDir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeEngineUnavailable, "failed to open metadata database", err)
	}
	a.meta = meta

	attrs, err := store.NewAttributeIndex(meta)
	if err != nil {
		return nil, errors.InternalError("failed to prepare attribute index", err)
	}

	if err := telemetry.InitTelemetrySchema(meta); err != nil {
		return nil, errors.InternalError("failed to prepare telemetry schema", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(meta)
	if err != nil {
		return nil, errors.InternalError("failed to open telemetry store", err)
	}
	a.history = metricsStore
	a.Telemetry = telemetry.NewQueryMetrics(metricsStore)
	a.Metrics = metrics.New()

	a.Searcher, err = search.NewSearcher(idx,
		search.WithTelemetry(a.Telemetry),
		search.WithMetrics(a.Metrics),
		search.WithPageSize(cfg.Search.PageSize),
		search.WithSnippetLength(cfg.Search.SnippetLength),
	)
	if err != nil {
		return nil, errors.InternalError("failed to create searcher", err)
	}

	a.Indexer, err = index.New(index.Dependencies{
		Content:     a.Content,
		Permissions: permission.NewACLEvaluator(a.Content),
		Blocks:      blocks.NewTypes(cfg.Blocks.SearchableFields),
		Index:       idx,
		Hook:        attrs,
		Metrics:     a.Metrics,
	}, index.Config{
		SearchableAreas: cfg.Index.SearchableAreas,
		Workers:         cfg.Index.Workers,
		Atomic:          cfg.Index.AtomicRebuild,
		LockDir:         dataDir,
	})
	if err != nil {
		return nil, errors.InternalError("failed to create indexer", err)
	}

	slog.Debug("app_opened",
		slog.String("root", root),
		slog.String("content", contentPath),
		slog.String("backend", cfg.Index.Backend),
		slog.String("data_dir", dataDir))

	ok = true
	return a, nil
}

// SiteName is the project directory name.
func (a *App) SiteName() string {
	return filepath.Base(a.Root)
}

// DataDir is the resolved index directory.
func (a *App) DataDir() string {
	return a.Config.DataPath(a.Root)
}

// ContentPath is the resolved content location.
func (a *App) ContentPath() string {
	return a.Config.ContentPath(a.Root)
}

// Reload re-reads the content tree and drops cached pages.
func (a *App) Reload() error {
	if err := a.Content.Reload(); err != nil {
		return errors.New(errors.ErrCodeContentUnavailable, "failed to reload site content", err).
			WithDetail("path", a.ContentPath())
	}
	return nil
}

// Reindex rebuilds the index for groupID, or the configured group when
// groupID is zero.
func (a *App) Reindex(ctx context.Context, groupID int64, opts ...index.ReindexOption) (*index.Summary, error) {
	if groupID == 0 {
		groupID = a.Config.Index.GroupID
	}
	return a.Indexer.Reindex(ctx, groupID, opts...)
}

// MCPServer creates an MCP server over the open components.
func (a *App) MCPServer() (*mcp.Server, error) {
	return mcp.NewServer(mcp.Dependencies{
		Searcher:    a.Searcher,
		Indexer:     a.Indexer,
		Index:       a.Index,
		Content:     a.Content,
		Telemetry:   a.Telemetry,
		Config:      a.Config,
		SiteName:    a.SiteName(),
		ContentPath: a.ContentPath(),
	})
}

// Status collects index and query statistics for display.
func (a *App) Status(ctx context.Context) (ui.StatusInfo, error) {
	stats, err := a.Index.Stats(ctx)
	if err != nil {
		return ui.StatusInfo{}, errors.New(errors.ErrCodeEngineUnavailable, "failed to read index statistics", err)
	}

	ids, err := a.Content.PageIDs(ctx)
	if err != nil {
		return ui.StatusInfo{}, errors.New(errors.ErrCodeContentUnavailable, "failed to list pages", err)
	}

	info := ui.StatusInfo{
		SiteName:    a.SiteName(),
		ContentPath: a.ContentPath(),
		Pages:       len(ids),
		Backend:     stats.Backend,
		IndexPath:   stats.Path,
		Documents:   stats.DocumentCount,
		LastRebuild: stats.LastRebuild,
		IndexSize:   diskUsage(stats.Path),
		Reindex:     a.reindexState(),
	}

	snap, err := a.queryHistory()
	if err != nil {
		slog.Warn("query_history_unavailable", slog.String("error", err.Error()))
		snap = a.Telemetry.Snapshot()
	}
	info.TotalQueries = snap.TotalQueries
	info.ZeroResultPercent = snap.ZeroResultPercentage()
	info.ZeroResultQueries = snap.ZeroResultQueries
	for _, tc := range snap.TopTerms {
		info.TopTerms = append(info.TopTerms, ui.TermCount{Term: tc.Term, Count: tc.Count})
	}
	return info, nil
}

// statusTopN bounds the terms and zero-result queries shown by Status.
const statusTopN = 10

// queryHistory flushes pending telemetry and reads the persisted totals,
// which include queries from earlier processes.
func (a *App) queryHistory() (*telemetry.QueryMetricsSnapshot, error) {
	if err := a.Telemetry.Flush(); err != nil {
		return nil, err
	}
	return telemetry.LoadSnapshot(a.history, statusTopN)
}

func (a *App) reindexState() string {
	if a.Indexer.IsRunning() {
		return "running"
	}
	running, err := index.IsRunning(a.DataDir())
	if err != nil {
		slog.Warn("job_lock_probe_failed", slog.String("error", err.Error()))
		return "error"
	}
	if running {
		return "running"
	}
	if a.Indexer.Progress().Snapshot().State == string(index.StateError) {
		return "error"
	}
	return "idle"
}

// Close releases every resource. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	if a.Telemetry != nil {
		if err := a.Telemetry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush telemetry: %w", err))
		}
		a.Telemetry = nil
	}
	if a.meta != nil {
		if err := a.meta.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close metadata database: %w", err))
		}
		a.meta = nil
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close index: %w", err))
		}
		a.Index = nil
	}
	return stderrors.Join(errs...)
}

// diskUsage is the size of a file, or the total size of a directory tree.
func diskUsage(path string) int64 {
	if path == "" {
		return 0
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
