// Package cli provides the spacetraveling command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacetraveling/blogfeed/internal/config"
	"github.com/spacetraveling/blogfeed/pkg/logging"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// app carries what every command needs once the config is loaded.
type app struct {
	configPath string
	loader     *config.Loader
	cfg        *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "spacetraveling",
		Short:         "Build and serve the spacetraveling blog",
		Long:          "spacetraveling fetches posts from Prismic, renders the blog home page and serves the paginated \"load more\" list.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: ./blogfeed.yaml)")

	root.AddCommand(
		newBuildCmd(a),
		newServeCmd(a),
		newExportCmd(a),
		newBrowseCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	a.loader = config.NewLoader(a.configPath)
	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:   level,
		Pretty:  cfg.Log.Pretty,
		Service: "spacetraveling",
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spacetraveling %s (%s)\n", Version, Commit)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
