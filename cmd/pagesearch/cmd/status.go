package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pagesearch/internal/ui"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status and query statistics",
		Long: `Display information about the search index:
  - Content location and page count
  - Backend, index location and size
  - Indexed documents and last rebuild time
  - Whether a reindex is running
  - Query totals, top terms and recent queries without results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.openApp(nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			info, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderer := ui.NewStatusRenderer(out, noColor || ui.DetectNoColor() || !ui.IsTTY(out))
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
