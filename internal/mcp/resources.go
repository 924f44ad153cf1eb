package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// QueryMetricsURI is the URI of the query telemetry resource.
const QueryMetricsURI = "pagesearch://query_metrics"

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryKindCounts     map[string]int64    `json:"query_kind_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries    int64   `json:"total_queries"`
	PathScoped      int64   `json:"path_scoped"`
	ZeroResultPct   float64 `json:"zero_result_pct"`
	ExactRepeatRate float64 `json:"exact_repeat_rate"`
	Since           string  `json:"since"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "What visitors search for: top terms, zero-result queries and latency",
			MIMEType:    "application/json",
		},
		s.handleQueryMetrics,
	)
}

// queryMetrics builds the resource body from the current snapshot.
func (s *Server) queryMetrics() (*QueryMetricsOutput, error) {
	if s.telemetry == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}

	snap := s.telemetry.Snapshot()
	out := &QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:    snap.TotalQueries,
			PathScoped:      snap.PathScopedCount,
			ZeroResultPct:   snap.ZeroResultPercentage(),
			ExactRepeatRate: snap.ExactRepeatRate(),
			Since:           snap.Since.UTC().Format("2006-01-02T15:04:05Z"),
		},
		QueryKindCounts:     make(map[string]int64, len(snap.KindCounts)),
		TopTerms:            make([]QueryTermCount, 0, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for kind, n := range snap.KindCounts {
		out.QueryKindCounts[string(kind)] = n
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = n
	}
	return out, nil
}

func (s *Server) handleQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.queryMetrics()
	if err != nil {
		return nil, err
	}

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      QueryMetricsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
