package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spacetraveling/blogfeed/internal/config"
	"github.com/spacetraveling/blogfeed/internal/site"
	"github.com/spacetraveling/blogfeed/pkg/feed"
	"github.com/spacetraveling/blogfeed/pkg/logging"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		from  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the home page and the load more API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr()
			}

			client, rdb, cleanup, err := newPrismic(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var home feed.Page
			if from != "" {
				home, err = site.ReadPage(from)
			} else {
				home, err = client.FirstPage(ctx)
			}
			if err != nil {
				return err
			}

			var ready func(ctx context.Context) error
			if rdb != nil {
				ready = func(ctx context.Context) error {
					return rdb.Ping(ctx).Err()
				}
			}

			logger := logging.NewLogger("http")
			srv := site.NewServer(site.ServerConfig{
				Home:           home,
				Source:         client,
				Ready:          ready,
				RequestTimeout: a.cfg.Prismic.Timeout,
			}, logger)

			if watch && a.loader.File() != "" {
				a.loader.Watch(func(cfg *config.Config) {
					level, err := logging.ParseLevel(cfg.Log.Level)
					if err != nil {
						return
					}
					logging.Setup(logging.Config{
						Level:   level,
						Pretty:  cfg.Log.Pretty,
						Service: "spacetraveling",
						Output:  cmd.ErrOrStderr(),
					})
					log.Info().Str("level", string(level)).Msg("Config reloaded")
				}, func(err error) {
					log.Warn().Err(err).Msg("Ignoring invalid config change")
				})
			}

			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.host:server.port)")
	cmd.Flags().StringVar(&from, "from", "", "serve the home page from a posts.json written by build")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload logging settings when the config file changes")
	return cmd
}
