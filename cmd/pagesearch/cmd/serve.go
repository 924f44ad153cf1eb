package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pagesearch/internal/app"
	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/logging"
	"github.com/Aman-CERP/pagesearch/internal/metrics"
)

const metricsShutdownTimeout = 5 * time.Second

func newServeCmd(global *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  search        keyword search with path filters and pagination
  reindex       rebuild the index for a permission group
  index_status  index size, last rebuild and reindex progress

Stdout carries only protocol messages. Logs go to ~/.pagesearch/logs/.
With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Example: `  pagesearch serve
  pagesearch serve --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, root, err := global.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}

			logCfg := logging.ServerConfig(cfg.Server.LogLevel)
			if global.debug {
				logCfg.Level = "debug"
			}
			if err := global.setupLogging(logCfg); err != nil {
				return err
			}

			return runServe(ctx, cfg, root)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default: server.metrics_addr)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, root string) error {
	a, err := app.Open(cfg, root)
	if err != nil {
		return err
	}
	defer closeApp(a)

	srv, err := a.MCPServer()
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	slog.Info("serve_starting",
		slog.String("root", root),
		slog.String("content", a.ContentPath()),
		slog.String("backend", cfg.Index.Backend))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, cfg.Server.Transport)
	})
	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Server.MetricsAddr, a.Metrics)
		})
	}
	return g.Wait()
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	m.RegisterEndpoint(mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics_listening", slog.String("addr", ln.Addr().String()))
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics_shutdown_failed", slog.String("error", err.Error()))
		}
		return nil
	}
}
