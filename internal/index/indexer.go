// Package index rebuilds the page search index from the content tree. A
// reindex visits every page in ID order, skips pages that must not be
// searchable by the chosen permission group, extracts the text of their
// searchable block areas and writes one entry per page.
package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pagesearch/internal/blocks"
	"github.com/Aman-CERP/pagesearch/internal/content"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/metrics"
	"github.com/Aman-CERP/pagesearch/internal/permission"
	"github.com/Aman-CERP/pagesearch/internal/store"
)

// DefaultSearchableAreas are indexed on every page.
var DefaultSearchableAreas = []string{"Main Content", "Main"}

// batchFactor sizes a parallel evaluation window as workers*batchFactor pages.
const batchFactor = 4

// PageHook is the secondary per-page reindex step run after a page is
// written to the search index.
type PageHook interface {
	ReindexPage(ctx context.Context, page *content.Page) error
}

// PruningHook is a PageHook that also drops the state of pages left out
// of a committed rebuild.
type PruningHook interface {
	PageHook
	Prune(ctx context.Context, keep []int64) error
}

// Dependencies are the collaborators of an Indexer.
type Dependencies struct {
	Content     content.Store        // required
	Permissions permission.Evaluator // required
	Blocks      *blocks.Types        // required
	Index       store.Index          // required

	Hook    PageHook         // optional
	Metrics *metrics.Metrics // optional
}

// Config tunes an Indexer.
type Config struct {
	// SearchableAreas replaces DefaultSearchableAreas when non-empty.
	SearchableAreas []string
	// Workers > 1 evaluates pages concurrently. Entries are still written
	// in ascending page ID order.
	Workers int
	// Atomic keeps the previous index visible until the rebuild commits.
	Atomic bool
	// LockDir, when set, holds a cross-process JobLock in that directory
	// for the duration of each reindex.
	LockDir string
}

// Event is reported after each page is visited.
type Event struct {
	Current int
	Total   int
	Outcome Outcome
}

// ReindexOption configures one Reindex call.
type ReindexOption func(*reindexOptions)

type reindexOptions struct {
	onProgress func(Event)
}

// WithProgressFunc receives an Event after every page. fn is called from
// the reindex goroutine, never concurrently.
func WithProgressFunc(fn func(Event)) ReindexOption {
	return func(o *reindexOptions) {
		o.onProgress = fn
	}
}

// Indexer rebuilds the search index.
type Indexer struct {
	content     content.Store
	permissions permission.Evaluator
	blocks      *blocks.Types
	index       store.Index
	hook        PageHook
	metrics     *metrics.Metrics
	config      Config
	progress    *Progress
	running     atomic.Bool

	mu    sync.RWMutex
	areas []string
}

// New creates an Indexer.
func New(deps Dependencies, cfg Config) (*Indexer, error) {
	if deps.Content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if deps.Permissions == nil {
		return nil, fmt.Errorf("permission evaluator is required")
	}
	if deps.Blocks == nil {
		return nil, fmt.Errorf("block types are required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("search index is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	areas := cfg.SearchableAreas
	if len(areas) == 0 {
		areas = DefaultSearchableAreas
	}

	return &Indexer{
		content:     deps.Content,
		permissions: deps.Permissions,
		blocks:      deps.Blocks,
		index:       deps.Index,
		hook:        deps.Hook,
		metrics:     deps.Metrics,
		config:      cfg,
		progress:    NewProgress(),
		areas:       dedupe(nil, areas),
	}, nil
}

// AddSearchableArea indexes area on every page from the next reindex on.
func (ix *Indexer) AddSearchableArea(area string) {
	area = strings.TrimSpace(area)
	if area == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.areas = dedupe(ix.areas, []string{area})
}

// SearchableAreas returns the areas indexed on every page, in order.
func (ix *Indexer) SearchableAreas() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.areas...)
}

// Progress returns the tracker of the current or last run.
func (ix *Indexer) Progress() *Progress {
	return ix.progress
}

// IsRunning reports whether a reindex is in progress in this process.
func (ix *Indexer) IsRunning() bool {
	return ix.running.Load()
}

// Reindex rebuilds the whole index as seen by groupID. Page-local problems
// are recorded in the summary and the run continues. Failures that make
// the index unusable abort the run, roll back the rebuild and return a
// typed error.
func (ix *Indexer) Reindex(ctx context.Context, groupID int64, opts ...ReindexOption) (*Summary, error) {
	var o reindexOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !ix.running.CompareAndSwap(false, true) {
		return nil, errInProgress("")
	}
	defer ix.running.Store(false)

	if ix.config.LockDir != "" {
		lock := NewJobLock(ix.config.LockDir)
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, errors.New(errors.ErrCodeIndexLocked, "failed to acquire reindex lock", err).
				WithDetail("lock", lock.Path())
		}
		if !acquired {
			return nil, errInProgress(lock.Path())
		}
		defer func() { _ = lock.Unlock() }()
	}

	start := time.Now()
	ix.progress.begin(groupID)
	slog.Info("reindex_started",
		slog.Int64("group_id", groupID),
		slog.Bool("atomic", ix.config.Atomic),
		slog.Int("workers", ix.config.Workers))

	summary, err := ix.run(ctx, groupID, o)
	duration := time.Since(start)
	if err != nil {
		ix.progress.setError(err.Error())
		ix.metrics.ObserveReindex(duration, 0, err)
		slog.Error("reindex_failed",
			append([]any{slog.Int64("group_id", groupID), slog.Duration("duration", duration)},
				errors.LogAttrs(err)...)...)
		return nil, err
	}

	summary.Duration = duration
	ix.progress.setReady()
	ix.metrics.ObserveReindex(duration, summary.Indexed, nil)
	slog.Info("reindex_completed",
		slog.Int64("group_id", groupID),
		slog.Int("indexed", summary.Indexed),
		slog.Int("skipped", summary.SkippedTotal()),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", duration))
	return summary, nil
}

func (ix *Indexer) run(ctx context.Context, groupID int64, o reindexOptions) (*Summary, error) {
	ids, err := ix.content.PageIDs(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrCodeContentUnavailable, "failed to enumerate pages", err)
	}
	ix.progress.setTotal(len(ids))

	if _, err := ix.content.Group(ctx, groupID); err != nil {
		if stderrors.Is(err, content.ErrNotFound) {
			return nil, errors.New(errors.ErrCodeGroupNotFound,
				fmt.Sprintf("permission group %d does not exist", groupID), err).
				WithSuggestion("Set index.group_id to an existing group")
		}
		return nil, errors.New(errors.ErrCodeContentUnavailable, "failed to load permission group", err)
	}

	if cc, ok := ix.content.(content.CacheController); ok {
		restore := cc.DisableLocalCache()
		defer restore()
	}

	rb, err := ix.index.Rebuild(ctx, store.RebuildOptions{Atomic: ix.config.Atomic})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.ErrCodeReindexFailed, "reindex cancelled", err)
		}
		return nil, errors.New(errors.ErrCodeEngineUnavailable, "failed to start index rebuild", err)
	}

	summary := newSummary(groupID, ix.config.Atomic)
	indexed := make([]int64, 0, len(ids))
	areas := ix.SearchableAreas()
	batch := ix.config.Workers * batchFactor

	for lo := 0; lo < len(ids); lo += batch {
		hi := lo + batch
		if hi > len(ids) {
			hi = len(ids)
		}

		visits, err := ix.evaluateBatch(ctx, ids[lo:hi], groupID, areas)
		if err != nil {
			return nil, ix.abort(rb, err)
		}

		for _, v := range visits {
			if err := ctx.Err(); err != nil {
				return nil, ix.abort(rb, err)
			}
			if v.entry != nil {
				if err := rb.Insert(ctx, v.entry); err != nil {
					return nil, ix.abort(rb, err)
				}
				indexed = append(indexed, v.entry.PageID)
				v.outcome.Err = ix.runHook(ctx, v.page)
			}
			summary.add(v.outcome)
			ix.progress.record(v.outcome)
			ix.metrics.RecordPage(string(v.outcome.Status), string(v.outcome.Reason))
			if o.onProgress != nil {
				o.onProgress(Event{Current: len(summary.Outcomes), Total: len(ids), Outcome: v.outcome})
			}
		}
	}

	if err := rb.Commit(); err != nil {
		return nil, ix.abort(rb, err)
	}
	ix.pruneHook(ctx, indexed)
	return summary, nil
}

// pruneHook clears hook state for pages missing from the committed index.
// A failure leaves stale rows but does not undo the rebuild.
func (ix *Indexer) pruneHook(ctx context.Context, indexed []int64) {
	p, ok := ix.hook.(PruningHook)
	if !ok {
		return
	}
	if err := p.Prune(ctx, indexed); err != nil {
		slog.Warn("reindex_hook_prune_failed", slog.String("error", err.Error()))
	}
}

// abort rolls back the rebuild and wraps cause in a typed error.
func (ix *Indexer) abort(rb store.Rebuilder, cause error) error {
	if err := rb.Rollback(); err != nil {
		slog.Warn("reindex_rollback_failed", slog.String("error", err.Error()))
	}
	if _, ok := errors.As(cause); ok {
		return cause
	}
	if stderrors.Is(cause, context.Canceled) || stderrors.Is(cause, context.DeadlineExceeded) {
		return errors.New(errors.ErrCodeReindexFailed, "reindex cancelled", cause)
	}
	return errors.New(errors.ErrCodeReindexFailed, "reindex aborted", cause)
}

func (ix *Indexer) runHook(ctx context.Context, page *content.Page) error {
	if ix.hook == nil {
		return nil
	}
	if err := ix.hook.ReindexPage(ctx, page); err != nil {
		slog.Warn("reindex_hook_failed",
			slog.Int64("page_id", page.ID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// visit is the evaluation of one page. entry is nil unless the page is to
// be indexed.
type visit struct {
	outcome Outcome
	page    *content.Page
	entry   *store.Entry
}

// evaluateBatch evaluates ids and returns the visits in the same order.
func (ix *Indexer) evaluateBatch(ctx context.Context, ids []int64, groupID int64, areas []string) ([]visit, error) {
	visits := make([]visit, len(ids))

	if ix.config.Workers == 1 {
		for i, id := range ids {
			v, err := ix.evaluate(ctx, id, groupID, areas)
			if err != nil {
				return nil, err
			}
			visits[i] = v
		}
		return visits, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Workers)
	for i, id := range ids {
		g.Go(func() error {
			v, err := ix.evaluate(gctx, id, groupID, areas)
			if err != nil {
				return err
			}
			visits[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return visits, nil
}

// evaluate decides whether a page is indexed and builds its entry. A
// returned error is global and aborts the reindex.
func (ix *Indexer) evaluate(ctx context.Context, id, groupID int64, areas []string) (visit, error) {
	if err := ctx.Err(); err != nil {
		return visit{}, err
	}

	page, err := ix.content.Page(ctx, id, content.VersionActive)
	if err != nil {
		if stderrors.Is(err, content.ErrNotFound) {
			return skip(id, "", ReasonPageNotFound), nil
		}
		return visit{}, errors.New(errors.ErrCodeContentUnavailable,
			fmt.Sprintf("failed to load page %d", id), err)
	}

	switch {
	case page.IsSystemPage():
		return skip(id, page.Path, ReasonSystemPage), nil
	case page.BoolAttribute(content.AttrExcludeSearchIndex):
		return skip(id, page.Path, ReasonExcluded), nil
	case !page.IsApproved():
		return skip(id, page.Path, ReasonUnapproved), nil
	}

	theme, err := ix.content.Theme(ctx, page)
	if err != nil || theme == nil {
		slog.Debug("reindex_page_skipped",
			slog.Int64("page_id", id),
			slog.String("reason", string(ReasonThemeUnavailable)))
		return skip(id, page.Path, ReasonThemeUnavailable), nil
	}

	allowed, err := ix.permissions.CanRead(ctx, groupID, page)
	if err != nil {
		return fail(page, ReasonPermissionError, err), nil
	}
	if !allowed {
		return skip(id, page.Path, ReasonPermissionDenied), nil
	}

	text, reason, err := ix.extract(ctx, page, dedupe(areas, theme.SearchableAreas))
	if err != nil {
		if ctx.Err() != nil {
			return visit{}, ctx.Err()
		}
		return fail(page, reason, err), nil
	}

	return visit{
		outcome: Outcome{PageID: id, Path: page.Path, Status: StatusIndexed},
		page:    page,
		entry: &store.Entry{
			PageID:      page.ID,
			Name:        page.Name,
			Description: page.Description,
			Path:        page.Path,
			DatePublic:  page.DatePublic,
			Content:     text,
		},
	}, nil
}

func skip(id int64, path string, reason Reason) visit {
	return visit{outcome: Outcome{PageID: id, Path: path, Status: StatusSkipped, Reason: reason}}
}

func fail(page *content.Page, reason Reason, err error) visit {
	slog.Warn("reindex_page_failed",
		slog.Int64("page_id", page.ID),
		slog.String("reason", string(reason)),
		slog.String("error", err.Error()))
	return visit{outcome: Outcome{PageID: page.ID, Path: page.Path, Status: StatusFailed, Reason: reason, Err: err}}
}

func errInProgress(lockPath string) *errors.SearchError {
	err := errors.New(errors.ErrCodeReindexInProgress, "a reindex is already running", nil).
		WithSuggestion("Wait for the running reindex to finish")
	if lockPath != "" {
		err = err.WithDetail("lock", lockPath)
	}
	return err
}
