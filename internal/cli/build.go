package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacetraveling/blogfeed/internal/site"
)

func newBuildCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render the static home page and its initial posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				outDir = a.cfg.Server.OutDir
			}

			ctx := cmd.Context()
			client, _, cleanup, err := newPrismic(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			state, err := site.Build(ctx, client, outDir)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Built %s with %d posts (more: %t)\n", outDir, len(state.Items), state.HasMore())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: server.out_dir)")
	return cmd
}
