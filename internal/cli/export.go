package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacetraveling/blogfeed/pkg/feed"
	"github.com/spacetraveling/blogfeed/pkg/pagination"
)

// exportDocument is the JSON written by export.
type exportDocument struct {
	Count    int         `json:"count"`
	Complete bool        `json:"complete"`
	Posts    []feed.Post `json:"posts"`
}

func newExportCmd(a *app) *cobra.Command {
	var (
		out      string
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every post as JSON",
		Long:  "export follows the next_page cursors until the last page and writes all posts. With --parallel the numbered pages are fetched by a worker pool instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, _, cleanup, err := newPrismic(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			walkCfg := pagination.Config{
				MaxPages:       a.cfg.Walk.MaxPages,
				Timeout:        a.cfg.Walk.Timeout,
				MaxConcurrency: a.cfg.Walk.Concurrency,
			}

			var posts []feed.Post
			var walkErr error
			if parallel {
				pager, err := client.PinMasterRef(ctx)
				if err != nil {
					return err
				}
				posts, walkErr = pagination.NewBatchFetcher(pager, walkCfg).FetchAll(ctx)
			} else {
				first, err := client.FirstPage(ctx)
				if err != nil {
					return err
				}
				ctrl := newController(a.cfg, first, client)
				var state feed.State
				state, walkErr = pagination.NewWalker(walkCfg).Walk(ctx, ctrl)
				posts = state.Items
			}
			if posts == nil {
				posts = []feed.Post{}
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := writeExport(w, exportDocument{
				Count:    len(posts),
				Complete: walkErr == nil,
				Posts:    posts,
			}); err != nil {
				return err
			}
			return walkErr
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "fetch numbered pages in parallel")
	return cmd
}

func writeExport(w io.Writer, doc exportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
