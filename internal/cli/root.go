// Package cli implements the frost-ingest command line.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/i474232898/frost-ingest/internal/config"
	"github.com/i474232898/frost-ingest/internal/logging"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is shared state filled in before any subcommand runs.
type env struct {
	cfg    *config.AppConfig
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var debug bool

	cmd := &cobra.Command{
		Use:          "frost-ingest",
		Short:        "Fetch daily precipitation from frost.met.no and load it into a warehouse",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if debug {
				cfg.LogLevel = "debug"
			}
			e.cfg = cfg
			e.logger = logging.Setup(logging.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.AddCommand(ingestCmd(e), stationsCmd(e), serveCmd(e))
	return cmd
}
