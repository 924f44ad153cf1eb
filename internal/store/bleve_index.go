package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// BackendBleve selects the Bleve engine.
	BackendBleve = "bleve"

	// PageTextAnalyzerName tokenizes on Unicode word boundaries and
	// lowercases, matching FTS5's unicode61 tokenizer.
	PageTextAnalyzerName = "page_text"
)

var (
	bleveTextFields   = []string{"name", "description", "content"}
	bleveStoredFields = []string{"name", "description", "path", "date_public", "content"}
	bleveLastRebuild  = []byte(metaLastRebuild)
)

// BleveIndex implements Index with Bleve v2.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool

	rebuildSem chan struct{}
}

var _ Index = (*BleveIndex)(nil)

// bleveDocument is the indexed form of an Entry.
type bleveDocument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	DatePublic  string `json:"date_public"`
	Content     string `json:"content"`
}

// docID zero-pads page IDs so document IDs sort numerically.
func docID(pageID int64) string {
	return fmt.Sprintf("%020d", pageID)
}

func parseDocID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// validateBleveIntegrity checks an existing index directory before opening.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveIndex opens (or creates) a Bleve page index at path. An empty path
// creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createPageMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("search index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("bleve_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruptionError(err) {
			slog.Warn("bleve_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("search index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveIndex{
		index:      idx,
		path:       path,
		rebuildSem: make(chan struct{}, 1),
	}, nil
}

func createPageMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(PageTextAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = PageTextAnalyzerName
	text.Store = true
	text.IncludeTermVectors = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true
	keyword.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	for _, f := range bleveTextFields {
		doc.AddFieldMappingsAt(f, text)
	}
	doc.AddFieldMappingsAt("path", keyword)
	doc.AddFieldMappingsAt("date_public", keyword)

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = PageTextAnalyzerName
	return indexMapping, nil
}

func toBleveDocument(e *Entry) bleveDocument {
	return bleveDocument{
		Name:        e.Name,
		Description: e.Description,
		Path:        e.Path,
		DatePublic:  formatDate(e.DatePublic),
		Content:     e.Content,
	}
}

// Rebuild empties the index (now, or on Commit when atomic) and returns a
// Rebuilder for the new contents.
func (b *BleveIndex) Rebuild(ctx context.Context, opts RebuildOptions) (Rebuilder, error) {
	select {
	case b.rebuildSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rb, err := b.startRebuild(ctx, opts)
	if err != nil {
		<-b.rebuildSem
		return nil, err
	}
	return rb, nil
}

func (b *BleveIndex) startRebuild(ctx context.Context, opts RebuildOptions) (*bleveRebuilder, error) {
	ids, err := b.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(docID(id))
	}

	rb := &bleveRebuilder{idx: b, seen: make(map[int64]struct{})}
	if opts.Atomic {
		rb.batch = batch
		return rb, nil
	}

	if err := b.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to truncate search index: %w", err)
	}
	return rb, nil
}

type bleveRebuilder struct {
	mu    sync.Mutex
	idx   *BleveIndex
	batch *bleve.Batch // pending changes, atomic mode only
	seen  map[int64]struct{}
	done  bool
}

func (r *bleveRebuilder) Insert(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return ErrRebuildFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, dup := r.seen[e.PageID]; dup {
		return fmt.Errorf("failed to index page %d: duplicate page id", e.PageID)
	}

	r.idx.mu.RLock()
	defer r.idx.mu.RUnlock()
	if r.idx.closed {
		return ErrClosed
	}

	var err error
	if r.batch != nil {
		err = r.batch.Index(docID(e.PageID), toBleveDocument(e))
	} else {
		err = r.idx.index.Index(docID(e.PageID), toBleveDocument(e))
	}
	if err != nil {
		return fmt.Errorf("failed to index page %d: %w", e.PageID, err)
	}
	r.seen[e.PageID] = struct{}{}
	return nil
}

func (r *bleveRebuilder) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return ErrRebuildFinished
	}
	r.done = true
	defer func() { <-r.idx.rebuildSem }()

	r.idx.mu.RLock()
	defer r.idx.mu.RUnlock()
	if r.idx.closed {
		return ErrClosed
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if r.batch != nil {
		r.batch.SetInternal(bleveLastRebuild, stamp)
		if err := r.idx.index.Batch(r.batch); err != nil {
			return fmt.Errorf("failed to commit rebuild: %w", err)
		}
		return nil
	}
	if err := r.idx.index.SetInternal(bleveLastRebuild, stamp); err != nil {
		return fmt.Errorf("failed to record rebuild time: %w", err)
	}
	return nil
}

func (r *bleveRebuilder) Rollback() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}
	r.done = true
	r.batch = nil
	<-r.idx.rebuildSem
	return nil
}

// buildBleveQuery translates the expression and path scope into a boolean
// query. Optional clauses only affect ranking when a required clause exists.
func buildBleveQuery(expr *Expression, prefixes []string) query.Query {
	bq := bleve.NewBooleanQuery()

	required := expr.ByOp(Required)
	for _, c := range required {
		bq.AddMust(clauseQuery(c))
	}
	for _, c := range expr.ByOp(Optional) {
		bq.AddShould(clauseQuery(c))
	}
	if len(required) == 0 {
		bq.SetMinShould(1)
	}
	for _, c := range expr.ByOp(Excluded) {
		bq.AddMustNot(clauseQuery(c))
	}

	if len(prefixes) > 0 {
		scopes := make([]query.Query, len(prefixes))
		for i, p := range prefixes {
			pq := bleve.NewPrefixQuery(p)
			pq.SetField("path")
			scopes[i] = pq
		}
		bq.AddMust(bleve.NewDisjunctionQuery(scopes...))
	}
	return bq
}

func clauseQuery(c Clause) query.Query {
	qs := make([]query.Query, 0, len(c.Terms)*len(bleveTextFields))
	for _, t := range c.Terms {
		for _, field := range bleveTextFields {
			qs = append(qs, termQuery(t, field))
		}
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func termQuery(t Term, field string) query.Query {
	if t.Prefix {
		pq := bleve.NewPrefixQuery(strings.ToLower(t.Text))
		pq.SetField(field)
		return pq
	}
	mq := bleve.NewMatchPhraseQuery(t.Text)
	mq.SetField(field)
	return mq
}

// Search returns one page of entries matching the query.
func (b *BleveIndex) Search(ctx context.Context, q Query) (*ResultPage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if q.Keywords.IsEmpty() {
		return &ResultPage{Results: []*Result{}}, nil
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	size := q.Limit
	if size <= 0 {
		size = int(count)
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	// Bleve sizes its collector from offset+size, so a window past the
	// last document only asks for the total.
	if uint64(offset) >= count {
		size, offset = 0, 0
	}

	req := bleve.NewSearchRequestOptions(buildBleveQuery(q.Keywords, q.PathPrefixes), size, offset, false)
	req.Fields = bleveStoredFields
	req.SortBy([]string{"-_score", "-date_public", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		e, err := entryFromHit(hit)
		if err != nil {
			return nil, err
		}
		results = append(results, &Result{Entry: *e, Score: hit.Score})
	}
	return &ResultPage{Results: results, Total: int(result.Total)}, nil
}

func entryFromHit(hit *search.DocumentMatch) (*Entry, error) {
	id, err := parseDocID(hit.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", hit.ID, err)
	}
	field := func(name string) string {
		s, _ := hit.Fields[name].(string)
		return s
	}
	return &Entry{
		PageID:      id,
		Name:        field("name"),
		Description: field("description"),
		Path:        field("path"),
		DatePublic:  parseDate(field("date_public")),
		Content:     field("content"),
	}, nil
}

// Get returns the stored entry for pageID, or nil if it is not indexed.
func (b *BleveIndex) Get(ctx context.Context, pageID int64) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docID(pageID)}))
	req.Fields = bleveStoredFields
	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pageID, err)
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}
	return entryFromHit(result.Hits[0])
}

// AllIDs returns every indexed page ID in ascending order.
func (b *BleveIndex) AllIDs(ctx context.Context) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}
	req.SortBy([]string{"_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := parseDocID(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", hit.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns index statistics.
func (b *BleveIndex) Stats(ctx context.Context) (*IndexStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	stats := &IndexStats{Backend: BackendBleve, Path: b.path, DocumentCount: int(docCount)}
	if raw, err := b.index.GetInternal(bleveLastRebuild); err == nil && len(raw) > 0 {
		stats.LastRebuild, _ = time.Parse(time.RFC3339Nano, string(raw))
	}
	return stats, nil
}

// Close closes the index. Idempotent.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
