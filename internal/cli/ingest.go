package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/frost-ingest/internal/ingest"
	"github.com/i474232898/frost-ingest/internal/logging"
	"github.com/i474232898/frost-ingest/internal/weather"
)

func ingestCmd(e *env) *cobra.Command {
	var (
		req     ingest.Request
		out     string
		csvPath string
	)

	c := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch precipitation and load it into databricks, csv, sql or mqtt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireFrost(); err != nil {
				return err
			}

			catalog, err := buildCatalog(e.cfg)
			if err != nil {
				return err
			}
			fetcher, closeFetcher, err := buildFetcher(e.cfg, catalog)
			if err != nil {
				return err
			}
			defer closeFetcher()

			sink, closeSink, err := buildSink(cmd.Context(), e.cfg, out, csvPath)
			if err != nil {
				return err
			}
			defer closeSink()

			svc := weather.NewService(fetcher, e.cfg.MaxConcurrent, logging.NewLogger("fetch"))
			defer svc.Close()
			res, err := ingest.NewRunner(svc, catalog, sink, logging.NewLogger("ingest")).Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if res.Rows == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No precipitation data returned. Nothing to do.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %d rows written to %s (run %s, %s)\n",
				res.Written, res.Sink, res.RunID, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	c.Flags().StringVar(&req.From, "from", "", "start date (inclusive), e.g. 2024-01-01")
	c.Flags().StringVar(&req.To, "to", "", "end date (exclusive), e.g. 2024-02-01")
	c.Flags().StringSliceVar(&req.Areas, "areas", nil, "electricity areas, comma-separated (NO1..NO5); defaults to all")
	c.Flags().StringVar(&out, "output", outputDatabricks, "destination: databricks|csv|sql|mqtt")
	c.Flags().StringVar(&csvPath, "csv-path", "precipitation.csv", "CSV output path (with --output csv)")
	c.Flags().BoolVar(&req.Parallel, "parallel", false, "fetch one request per station per year, concurrently")
	c.Flags().IntVar(&req.Concurrency, "concurrency", 0, "max concurrent Frost requests (default MAX_CONCURRENT_REQUESTS)")

	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}
