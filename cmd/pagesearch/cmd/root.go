// Package cmd provides the CLI commands for pagesearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/app"
	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/logging"
	"github.com/Aman-CERP/pagesearch/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug bool
	dir   string

	loggingCleanup func()
}

// NewRootCmd creates the root command for the pagesearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "pagesearch",
		Short: "Keyword search over published CMS pages",
		Long: `pagesearch builds a full-text index of the published pages of a site
and answers keyword queries against it.

Only pages that are approved, public and readable by the configured
permission group are indexed. Queries accept +required, -excluded and
"quoted phrase" terms and can be restricted to path prefixes.

Run 'pagesearch config init' in the site directory, then 'pagesearch reindex'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("pagesearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.pagesearch/logs/")
	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", "", "Project directory (default: nearest directory with "+config.ProjectConfigName+")")

	cmd.PersistentPreRunE = opts.startLogging
	cmd.PersistentPostRunE = opts.stopLogging

	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) startLogging(_ *cobra.Command, _ []string) error {
	if !o.debug {
		return nil
	}
	return o.setupLogging(logging.DebugConfig())
}

// setupLogging replaces the default logger. A previously installed logger
// is closed first.
func (o *globalOptions) setupLogging(cfg logging.Config) error {
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_enabled",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.String("version", version.Version))
	return nil
}

func (o *globalOptions) stopLogging(_ *cobra.Command, _ []string) error {
	if o.loggingCleanup != nil {
		slog.Debug("logging_stopped")
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return nil
}

// projectRoot resolves --dir, or searches upwards from the working
// directory.
func (o *globalOptions) projectRoot() (string, error) {
	if o.dir != "" {
		root, err := filepath.Abs(o.dir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve project directory: %w", err)
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return "", errors.New(errors.ErrCodeFileNotFound, "project directory not found", err).
				WithDetail("path", root)
		}
		return root, nil
	}
	return config.FindProjectRoot(".")
}

// loadConfig returns the effective configuration and the project root.
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	root, err := o.projectRoot()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", errors.ConfigError("failed to load configuration", err).
			WithDetail("path", config.ProjectConfigPath(root))
	}
	return cfg, root, nil
}

// openApp loads the configuration, lets adjust override it and opens the
// project. The caller closes the returned App.
func (o *globalOptions) openApp(adjust func(*config.Config)) (*app.App, error) {
	cfg, root, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	return app.Open(cfg, root)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Warn("app_close_failed", slog.String("error", err.Error()))
	}
}
