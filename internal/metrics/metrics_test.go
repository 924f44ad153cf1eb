package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordPage("indexed", "")

	count, err := testutil.GatherAndCount(registry, "pagesearch_reindex_pages_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordPage_CountsByStatusAndReason(t *testing.T) {
	m := New()

	m.RecordPage("indexed", "")
	m.RecordPage("indexed", "")
	m.RecordPage("skipped", "system_page")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReindexPagesTotal.WithLabelValues("indexed", "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReindexPagesTotal.WithLabelValues("skipped", "system_page")))
}

func TestObserveReindex(t *testing.T) {
	m := New()

	// Given: one successful and one failed run
	m.ObserveReindex(2*time.Second, 42, nil)
	m.ObserveReindex(time.Second, 7, errors.New("engine unavailable"))

	// Then: runs are split by status and the gauge keeps the successful count
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReindexRunsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReindexRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReindexDuration))
}

func TestObserveQuery_Labels(t *testing.T) {
	m := New()

	m.ObserveQuery(time.Millisecond, 3, nil)
	m.ObserveQuery(time.Millisecond, 0, nil)
	m.ObserveQuery(time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueriesTotal.WithLabelValues(ResultHit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueriesTotal.WithLabelValues(ResultEmpty)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueriesTotal.WithLabelValues(ResultError)))
}

func TestNilMetrics_IsNoOp(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordPage("indexed", "")
		m.ObserveReindex(time.Second, 1, nil)
		m.ObserveQuery(time.Second, 1, nil)
	})
}

func TestHandler_ServesExposition(t *testing.T) {
	m := New()
	m.ObserveQuery(time.Millisecond, 5, nil)

	mux := http.NewServeMux()
	m.RegisterEndpoint(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pagesearch_queries_total{result="hit"} 1`)
}
