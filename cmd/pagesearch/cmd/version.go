package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var (
		jsonOutput bool
		short      bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Example: `  pagesearch version
  pagesearch version --short
  pagesearch version --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case jsonOutput:
				data, err := json.MarshalIndent(version.GetInfo(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal version info: %w", err)
				}
				_, _ = fmt.Fprintln(out, string(data))
			case short:
				_, _ = fmt.Fprintln(out, version.Short())
			default:
				_, _ = fmt.Fprintln(out, version.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")

	return cmd
}
