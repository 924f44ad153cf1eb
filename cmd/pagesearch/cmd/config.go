package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/output"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage project configuration",
		Long: `Manage the project configuration file (` + config.ProjectConfigName + `).

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/pagesearch/config.yaml)
  3. Project config (` + config.ProjectConfigName + `)
  4. Environment variables (PAGESEARCH_*)`,
		Example: `  # Create a project config with defaults
  pagesearch config init

  # Show the effective configuration
  pagesearch config show

  # Restore the most recent backup
  pagesearch config restore`,
	}

	cmd.AddCommand(newConfigInitCmd(global))
	cmd.AddCommand(newConfigShowCmd(global))
	cmd.AddCommand(newConfigPathCmd(global))
	cmd.AddCommand(newConfigRestoreCmd(global))

	return cmd
}

func newConfigInitCmd(global *globalOptions) *cobra.Command {
	var (
		force       bool
		contentPath string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create " + config.ProjectConfigName + " with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := global.projectRoot()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			path := config.ProjectConfigPath(root)
			if _, err := os.Stat(path); err == nil {
				if !force {
					return errors.New(errors.ErrCodeInvalidInput, "configuration already exists", nil).
						WithDetail("path", path).
						WithSuggestion("Use --force to overwrite it; the current file is backed up first")
				}
				backup, err := config.BackupConfig(path)
				if err != nil {
					return err
				}
				out.Statusf("💾", "Backed up existing config to %s", backup)
			}

			cfg := config.NewConfig()
			if contentPath != "" {
				cfg.Content.Path = contentPath
			}
			if err := cfg.WriteYAML(path); err != nil {
				return err
			}
			out.Successf("Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	cmd.Flags().StringVar(&contentPath, "content", "", "Content file or directory (default: content)")

	return cmd
}

func newConfigShowCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := global.loadConfig()
			if err != nil {
				return err
			}

			if jsonOutput {
				return output.New(cmd.OutOrStdout()).JSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, _ = cmd.OutOrStdout().Write(data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the project and user config file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := global.projectRoot()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "project: %s\n", config.ProjectConfigPath(root))
			_, _ = fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigRestoreCmd(global *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the project config from a backup",
		Long: `Restore the project configuration from a backup made by 'config init --force'.

Without an argument the most recent backup is restored. The current file
is backed up before it is replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := global.projectRoot()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			path := config.ProjectConfigPath(root)

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				if len(backups) == 0 {
					out.Status("📭", "No backups")
				}
				for _, b := range backups {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			}

			var backup string
			switch {
			case len(args) == 1:
				backup = args[0]
			case len(backups) > 0:
				backup = backups[0]
			default:
				return errors.New(errors.ErrCodeFileNotFound, "no configuration backups found", nil).
					WithDetail("path", path)
			}

			if err := config.RestoreConfig(path, backup); err != nil {
				return err
			}
			out.Successf("Restored %s from %s", path, backup)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first")

	return cmd
}
