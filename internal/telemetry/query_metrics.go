// Package telemetry records search query patterns for tuning the site
// search. All telemetry data is stored locally - no external reporting.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Query Kinds
// =============================================================================

// QueryKind classifies a keyword expression by the syntax it uses.
type QueryKind string

const (
	QueryKindSimple  QueryKind = "simple"  // bare words
	QueryKindBoolean QueryKind = "boolean" // +, -, groups or prefix*
	QueryKindPhrase  QueryKind = "phrase"  // contains a quoted phrase
)

// ClassifyQuery returns the kind of a raw keyword expression.
func ClassifyQuery(query string) QueryKind {
	if strings.Contains(query, `"`) {
		return QueryKindPhrase
	}
	for _, w := range strings.Fields(query) {
		if strings.ContainsAny(w[:1], "+-~<>(") || strings.HasSuffix(w, "*") || strings.HasSuffix(w, ")") {
			return QueryKindBoolean
		}
	}
	return QueryKindSimple
}

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one executed search, as seen by telemetry.
type QueryEvent struct {
	Query       string
	Kind        QueryKind
	PathScoped  bool
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Term Extraction
// =============================================================================

const minTermLength = 3

// ExtractTerms returns the lowercased words of a keyword expression with
// boolean operators removed. Words shorter than three characters are
// dropped.
func ExtractTerms(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`+-~<>()"*`, r) {
			return ' '
		}
		return r
	}, strings.ToLower(query))

	var terms []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is an immutable snapshot of query metrics.
type QueryMetricsSnapshot struct {
	KindCounts          map[QueryKind]int64     `json:"kind_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	PathScopedCount     int64                   `json:"path_scoped_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// ExactRepeatRate returns the share of queries seen before.
func (s *QueryMetricsSnapshot) ExactRepeatRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ExactRepeatCount) / float64(s.TotalQueries)
}

// =============================================================================
// Persistence
// =============================================================================

// QueryMetricsStore persists aggregated query metrics. Count methods add to
// the stored values.
type QueryMetricsStore interface {
	SaveKindCounts(date string, counts map[QueryKind]int64) error
	GetKindCounts(from, to string) (map[QueryKind]int64, error)

	UpsertTermCounts(terms map[string]int64) error
	GetTopTerms(limit int) ([]TermCount, error)

	AddZeroResultQuery(query string, timestamp time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)

	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	SaveTotals(date string, t Totals) error
	GetTotals(from, to string) (Totals, error)

	Close() error
}

// Totals are the persisted query counters.
type Totals struct {
	Queries     int64
	ZeroResults int64
	PathScoped  int64
}

func (t Totals) isZero() bool {
	return t == Totals{}
}

// QueryMetricsConfig configures the query metrics collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // Max terms to track (default: 100)
	ZeroResultsCapacity   int           // Max zero-result queries to keep (default: 100)
	RecentQueriesCapacity int           // Max queries tracked for repeats (default: 500)
	FlushInterval         time.Duration // 0 disables auto-flush
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// pending holds the increments not yet flushed to the store.
type pending struct {
	kinds       map[QueryKind]int64
	terms       map[string]int64
	latencies   map[LatencyBucket]int64
	zeroResults []QueryEvent
	totals      Totals
}

func newPending() pending {
	return pending{
		kinds:     make(map[QueryKind]int64),
		terms:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// =============================================================================
// Query Metrics
// =============================================================================

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	kinds           map[QueryKind]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	pathScoped      int64
	startTime       time.Time

	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	unflushed pending
	flushMu   sync.Mutex

	store       QueryMetricsStore
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with the default configuration.
// If store is nil, metrics are only kept in memory.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		kinds:         make(map[QueryKind]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recentQueries,
		unflushed:     newPending(),
		store:         store,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one executed query.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Kind == "" {
		event.Kind = ClassifyQuery(event.Query)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.unflushed.totals.Queries++
	m.kinds[event.Kind]++
	m.unflushed.kinds[event.Kind]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.unflushed.terms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		m.unflushed.totals.ZeroResults++
		m.unflushed.zeroResults = append(m.unflushed.zeroResults, event)
	}
	if event.PathScoped {
		m.pathScoped++
		m.unflushed.totals.PathScoped++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.latencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})
}

// hashQuery normalizes a query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the current in-memory metrics.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make(map[QueryKind]int64, len(m.kinds))
	for k, v := range m.kinds {
		kinds[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return &QueryMetricsSnapshot{
		KindCounts:          kinds,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		PathScopedCount:     m.pathScoped,
		ExactRepeatCount:    m.exactRepeatCount,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
		Since:               m.startTime,
	}
}

// Flush writes the increments recorded since the last flush to the store.
// Safe to call without a store. On failure the increments are kept for the
// next flush.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = newPending()
	m.mu.Unlock()

	if err := m.write(&batch); err != nil {
		m.mu.Lock()
		m.unflushed.merge(batch)
		m.mu.Unlock()
		return err
	}
	return nil
}

// write persists batch, clearing each part once it is stored so a failure
// leaves only the unwritten remainder.
func (m *QueryMetrics) write(batch *pending) error {
	today := time.Now().Format("2006-01-02")

	if len(batch.kinds) > 0 {
		if err := m.store.SaveKindCounts(today, batch.kinds); err != nil {
			return err
		}
		batch.kinds = map[QueryKind]int64{}
	}
	if len(batch.terms) > 0 {
		if err := m.store.UpsertTermCounts(batch.terms); err != nil {
			return err
		}
		batch.terms = map[string]int64{}
	}
	if len(batch.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, batch.latencies); err != nil {
			return err
		}
		batch.latencies = map[LatencyBucket]int64{}
	}
	if !batch.totals.isZero() {
		if err := m.store.SaveTotals(today, batch.totals); err != nil {
			return err
		}
		batch.totals = Totals{}
	}
	for len(batch.zeroResults) > 0 {
		ev := batch.zeroResults[0]
		if err := m.store.AddZeroResultQuery(ev.Query, ev.Timestamp); err != nil {
			return err
		}
		batch.zeroResults = batch.zeroResults[1:]
	}
	return nil
}

func (p *pending) merge(other pending) {
	for k, v := range other.kinds {
		p.kinds[k] += v
	}
	for k, v := range other.terms {
		p.terms[k] += v
	}
	for k, v := range other.latencies {
		p.latencies[k] += v
	}
	p.totals.Queries += other.totals.Queries
	p.totals.ZeroResults += other.totals.ZeroResults
	p.totals.PathScoped += other.totals.PathScoped
	p.zeroResults = append(other.zeroResults, p.zeroResults...)
}

// Date bounds covering every persisted day.
const (
	historyFrom = "0000-01-01"
	historyTo   = "9999-12-31"
)

// LoadSnapshot builds a snapshot from everything persisted in store,
// keeping the limit most frequent terms and most recent zero-result
// queries. Repeat counts are not persisted and stay zero.
func LoadSnapshot(store QueryMetricsStore, limit int) (*QueryMetricsSnapshot, error) {
	totals, err := store.GetTotals(historyFrom, historyTo)
	if err != nil {
		return nil, err
	}
	kinds, err := store.GetKindCounts(historyFrom, historyTo)
	if err != nil {
		return nil, err
	}
	latencies, err := store.GetLatencyCounts(historyFrom, historyTo)
	if err != nil {
		return nil, err
	}
	terms, err := store.GetTopTerms(limit)
	if err != nil {
		return nil, err
	}
	zero, err := store.GetZeroResultQueries(limit)
	if err != nil {
		return nil, err
	}

	return &QueryMetricsSnapshot{
		KindCounts:          kinds,
		TopTerms:            terms,
		ZeroResultQueries:   zero,
		LatencyDistribution: latencies,
		TotalQueries:        totals.Queries,
		ZeroResultCount:     totals.ZeroResults,
		PathScopedCount:     totals.PathScoped,
	}, nil
}

// Close stops auto-flush and flushes once more.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
