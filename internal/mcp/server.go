package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/index"
	"github.com/Aman-CERP/pagesearch/internal/search"
	"github.com/Aman-CERP/pagesearch/internal/store"
	"github.com/Aman-CERP/pagesearch/internal/telemetry"
	"github.com/Aman-CERP/pagesearch/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "pagesearch"

// ContentReloader re-reads the content source before a reindex.
type ContentReloader interface {
	Reload() error
}

// Dependencies are the collaborators of a Server.
type Dependencies struct {
	Searcher *search.Searcher // required
	Indexer  *index.Indexer   // required
	Index    store.Index      // required

	Content   ContentReloader         // optional
	Telemetry *telemetry.QueryMetrics // optional
	Config    *config.Config          // optional, defaults apply

	SiteName    string
	ContentPath string
}

// Server is the MCP server. It exposes the search, reindex and
// index_status tools.
type Server struct {
	mcp       *mcp.Server
	searcher  *search.Searcher
	indexer   *index.Indexer
	index     store.Index
	content   ContentReloader
	telemetry *telemetry.QueryMetrics
	config    *config.Config
	logger    *slog.Logger

	siteName    string
	contentPath string
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search published site pages by keyword. Supports boolean syntax: +word requires a term, -word excludes it, \"quoted phrases\" match exactly. Optionally restrict to paths such as /blog. Returns one page of results ranked by relevance, newest first on ties.",
	},
	{
		Name:        "reindex",
		Description: "Rebuild the page search index from the content tree. Only pages readable by the given permission group are indexed. Refuses to start while another reindex is running.",
	},
	{
		Name:        "index_status",
		Description: "Report how many pages are indexed, when the index was last rebuilt and the progress of a running reindex.",
	},
}

// NewServer creates a new MCP server.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if deps.Index == nil {
		return nil, errors.New("search index is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		searcher:    deps.Searcher,
		indexer:     deps.Indexer,
		index:       deps.Index,
		content:     deps.Content,
		telemetry:   deps.Telemetry,
		config:      cfg,
		logger:      slog.Default(),
		siteName:    deps.SiteName,
		contentPath: deps.ContentPath,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	if s.telemetry != nil {
		s.registerQueryMetricsResource()
	}

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with loosely typed JSON arguments. The
// search tool returns markdown; the others return their output structs.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		input := SearchInput{}
		input.Query, _ = args["query"].(string)
		if page, ok := args["page"].(float64); ok {
			input.Page = int(page)
		}
		if paths, ok := args["paths"].([]any); ok {
			for _, p := range paths {
				if str, ok := p.(string); ok {
					input.Paths = append(input.Paths, str)
				}
			}
		}
		resp, partial, err := s.search(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(resp, partial), nil
	case "reindex":
		input := ReindexInput{}
		if id, ok := args["group_id"].(float64); ok {
			input.GroupID = int64(id)
		}
		return s.reindex(ctx, input)
	case "index_status":
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) search(ctx context.Context, input SearchInput) (*search.Response, bool, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, false, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	requestID := generateRequestID()
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("paths", len(input.Paths)),
		slog.Int("page", input.Page))

	start := time.Now()
	resp, err := s.searcher.Search(ctx, search.Request{
		Query: input.Query,
		Paths: input.Paths,
		Page:  input.Page,
	})
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, false, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total", resp.Total))

	partial := s.indexer.IsRunning() && !s.config.Index.AtomicRebuild
	return resp, partial, nil
}

func (s *Server) reindex(ctx context.Context, input ReindexInput) (*ReindexOutput, error) {
	groupID := input.GroupID
	if groupID == 0 {
		groupID = s.config.Index.GroupID
	}
	if groupID < 0 {
		return nil, NewInvalidParamsError(fmt.Sprintf("group_id must be positive, got %d", groupID))
	}
	if s.indexer.IsRunning() {
		return nil, &MCPError{Code: ErrCodeReindexBusy, Message: "A reindex is already running. Check index_status and retry when it finishes."}
	}

	requestID := generateRequestID()
	s.logger.Info("mcp_reindex_started",
		slog.String("request_id", requestID),
		slog.Int64("group_id", groupID))

	if s.content != nil {
		if err := s.content.Reload(); err != nil {
			s.logger.Warn("mcp_content_reload_failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
			return nil, &MCPError{Code: ErrCodeIndexUnavailable, Message: fmt.Sprintf("Content could not be reloaded: %v", err)}
		}
	}

	summary, err := s.indexer.Reindex(ctx, groupID)
	if err != nil {
		return nil, MapError(err)
	}

	s.logger.Info("mcp_reindex_completed",
		slog.String("request_id", requestID),
		slog.Int("indexed", summary.Indexed),
		slog.Int("skipped", summary.SkippedTotal()),
		slog.Int("failed", summary.Failed))

	return toReindexOutput(summary), nil
}

func toReindexOutput(summary *index.Summary) *ReindexOutput {
	out := &ReindexOutput{
		GroupID:    summary.GroupID,
		Atomic:     summary.Atomic,
		Indexed:    summary.Indexed,
		Skipped:    make(map[string]int, len(summary.Skipped)),
		Failed:     summary.Failed,
		DurationMS: summary.Duration.Milliseconds(),
	}
	for reason, n := range summary.Skipped {
		out.Skipped[string(reason)] = n
	}
	for _, o := range summary.Failures() {
		f := PageFailure{PageID: o.PageID, Path: o.Path, Reason: string(o.Reason)}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		out.Failures = append(out.Failures, f)
	}
	return out
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := &IndexStatusOutput{
		Site: SiteInfo{
			Name:        s.siteName,
			ContentPath: s.contentPath,
			GroupID:     s.config.Index.GroupID,
		},
		Stats: IndexStats{
			Backend:        stats.Backend,
			DocumentCount:  stats.DocumentCount,
			IndexSizeBytes: pathSize(stats.Path),
		},
	}
	if !stats.LastRebuild.IsZero() {
		out.Stats.LastRebuild = stats.LastRebuild.UTC().Format(time.RFC3339)
	}

	snap := s.indexer.Progress().Snapshot()
	out.Reindex = &ReindexProgress{
		State:          snap.State,
		GroupID:        snap.GroupID,
		PagesTotal:     snap.PagesTotal,
		PagesProcessed: snap.PagesProcessed,
		Indexed:        snap.Indexed,
		Skipped:        snap.Skipped,
		Failed:         snap.Failed,
		ProgressPct:    snap.ProgressPct,
		ElapsedSeconds: snap.ElapsedSeconds,
		ErrorMessage:   snap.ErrorMessage,
	}
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpReindexHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	resp, partial, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(resp, partial), nil
}

func toSearchOutput(resp *search.Response, partial bool) SearchOutput {
	out := SearchOutput{
		Query:     resp.Query,
		Results:   make([]SearchResultOutput, 0, len(resp.Results)),
		Total:     resp.Total,
		Page:      resp.Page,
		PageCount: resp.PageCount,
		Partial:   partial,
	}
	for _, r := range resp.Results {
		item := SearchResultOutput{
			PageID:      r.PageID,
			Name:        r.Name,
			Path:        r.Path,
			Description: r.Description,
			Score:       r.Score,
			Snippet:     r.Snippet,
		}
		if !r.DatePublic.IsZero() {
			item.DatePublic = r.DatePublic.UTC().Format(time.RFC3339)
		}
		out.Results = append(out.Results, item)
	}
	return out
}

// mcpReindexHandler is the MCP SDK handler for the reindex tool.
func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	*ReindexOutput,
	error,
) {
	out, err := s.reindex(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// pathSize returns the size of a file, or the total size of a directory.
func pathSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
