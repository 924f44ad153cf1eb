package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/logging"
	"github.com/Aman-CERP/pagesearch/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		event   string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the last entries of the pagesearch log (~/.pagesearch/logs/server.log).

The log is written by 'serve' and by any command run with --debug.`,
		Example: `  pagesearch logs
  pagesearch logs -n 200 --level warn
  pagesearch logs --event reindex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Event:   event,
				NoColor: noColor || ui.DetectNoColor() || !ui.IsTTY(out),
			}, out)

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to read from the end of the log")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&event, "event", "", "Only entries whose event name contains this text")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default: ~/.pagesearch/logs/server.log)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
