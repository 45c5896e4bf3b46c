package cli

import (
	"github.com/spf13/cobra"

	"github.com/spacetraveling/blogfeed/internal/site"
	"github.com/spacetraveling/blogfeed/pkg/feed"
)

func newBrowseCmd(a *app) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Read the blog in the terminal, loading more posts on Enter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, _, cleanup, err := newPrismic(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var first feed.Page
			if from != "" {
				first, err = site.ReadPage(from)
			} else {
				first, err = client.FirstPage(ctx)
			}
			if err != nil {
				return err
			}

			ctrl := newController(a.cfg, first, client)
			return site.Browse(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start from a posts.json written by build")
	return cmd
}
