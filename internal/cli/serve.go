package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/frost-ingest/internal/api/http"
	"github.com/i474232898/frost-ingest/internal/ingest"
	"github.com/i474232898/frost-ingest/internal/logging"
	"github.com/i474232898/frost-ingest/internal/scheduler"
	"github.com/i474232898/frost-ingest/internal/store"
	"github.com/i474232898/frost-ingest/internal/weather"
)

func serveCmd(e *env) *cobra.Command {
	var (
		out         string
		csvPath     string
		noSchedule  bool
		httpLogging bool
	)

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic ingest job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireFrost(); err != nil {
				return err
			}
			logger := logging.NewLogger("serve")

			catalog, err := buildCatalog(e.cfg)
			if err != nil {
				return err
			}
			fetcher, closeFetcher, err := buildFetcher(e.cfg, catalog)
			if err != nil {
				return err
			}
			defer closeFetcher()

			memStore := store.NewMemoryStore(e.cfg.Store.MaxRowsPerStation, e.cfg.Store.MaxAge)
			sinks := weather.MultiSink{memStore}
			if out != "" {
				extra, closeSink, err := buildSink(cmd.Context(), e.cfg, out, csvPath)
				if err != nil {
					return err
				}
				defer closeSink()
				sinks = append(sinks, extra)
			}

			svc := weather.NewService(fetcher, e.cfg.MaxConcurrent, logging.NewLogger("fetch"))
			defer svc.Close()
			runner := ingest.NewRunner(svc, catalog, sinks, logging.NewLogger("ingest"))

			if !noSchedule {
				sched := scheduler.New(runner, e.cfg.Schedule.Interval, e.cfg.Schedule.LookbackDays, logging.NewLogger("scheduler"))
				if err := sched.Start(); err != nil {
					return err
				}
				defer sched.Stop()
			}

			app := httpapi.NewApp(httpapi.Deps{
				Catalog:      catalog,
				Observations: memStore,
				Ingester:     runner,
			}, httpLogging)

			go func() {
				logger.Info().Str("port", e.cfg.Port).Msg("HTTP server listening")
				if err := app.Listen(":" + e.cfg.Port); err != nil {
					logger.Error().Err(err).Msg("HTTP server stopped")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Error during shutdown")
			}
			return nil
		},
	}

	c.Flags().StringVar(&out, "output", "", "also write every run to databricks|csv|sql|mqtt")
	c.Flags().StringVar(&csvPath, "csv-path", "precipitation.csv", "CSV output path (with --output csv)")
	c.Flags().BoolVar(&noSchedule, "no-schedule", false, "disable the periodic ingest job")
	c.Flags().BoolVar(&httpLogging, "access-log", true, "log every HTTP request")
	return c
}
