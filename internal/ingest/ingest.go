// Package ingest runs one end-to-end precipitation load: select stations,
// fetch, and write to a sink.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

// Request describes one ingest run. Dates are YYYY-MM-DD, To is exclusive.
type Request struct {
	From        string   `json:"from" validate:"required,datetime=2006-01-02"`
	To          string   `json:"to" validate:"required,datetime=2006-01-02"`
	Areas       []string `json:"areas" validate:"omitempty,dive,required"`
	Parallel    bool     `json:"parallel"`
	Concurrency int      `json:"concurrency" validate:"min=0,max=5"`
}

// Result summarises a finished run.
type Result struct {
	RunID       string        `json:"runId"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Mode        string        `json:"mode"`
	Concurrency int           `json:"concurrency,omitempty"` // parallel runs only
	Stations    int           `json:"stations"`
	Rows        int           `json:"rows"`
	Written     int           `json:"written"`
	Sink        string        `json:"sink,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Runner wires the fetch service to a sink.
type Runner struct {
	service  *weather.Service
	catalog  *weather.Catalog
	sink     weather.Sink
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewRunner(service *weather.Service, catalog *weather.Catalog, sink weather.Sink, logger zerolog.Logger) *Runner {
	return &Runner{
		service:  service,
		catalog:  catalog,
		sink:     sink,
		validate: validator.New(),
		logger:   logger,
	}
}

// Run executes req. Fetch failures abort the run before anything is written.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidInput, err)
	}
	from, to, err := weather.ParseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	areas := weather.AllAreas
	if len(req.Areas) > 0 {
		areas = make([]weather.Area, 0, len(req.Areas))
		for _, s := range req.Areas {
			a, err := weather.ParseArea(s)
			if err != nil {
				return nil, err
			}
			areas = append(areas, a)
		}
	}
	stations := r.catalog.ForAreas(areas)
	if len(stations) == 0 {
		return nil, fmt.Errorf("%w: no stations matched the selected areas", weather.ErrEmptyInput)
	}

	res := &Result{
		RunID:    uuid.New().String(),
		From:     req.From,
		To:       req.To,
		Mode:     weather.ModeSequential,
		Stations: len(stations),
	}
	if req.Parallel {
		res.Mode = weather.ModeParallel
	}
	logger := r.logger.With().Str("run_id", res.RunID).Logger()

	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}
	logger.Info().Str("from", req.From).Str("to", req.To).
		Str("areas", joinAreas(areas)).Str("stations", strings.Join(ids, ", ")).
		Bool("parallel", req.Parallel).Msg("Starting ingest")

	start := time.Now()
	var rows []weather.Observation
	if req.Parallel {
		res.Concurrency = r.service.MaxConcurrent()
		if req.Concurrency > 0 {
			res.Concurrency = min(req.Concurrency, res.Concurrency)
		}
		rows, err = r.service.RunParallel(ctx, stations, from, to, res.Concurrency)
	} else {
		rows, err = r.service.RunSequential(ctx, stations, from, to)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Ingest failed")
		runsTotal.WithLabelValues(res.Mode, "fetch_failed").Inc()
		return nil, err
	}
	res.Rows = len(rows)

	if len(rows) == 0 {
		res.Duration = time.Since(start)
		logger.Info().Msg("No precipitation data returned. Nothing to do.")
		runsTotal.WithLabelValues(res.Mode, "empty").Inc()
		return res, nil
	}

	if r.sink != nil {
		res.Sink = r.sink.Name()
		res.Written, err = r.sink.Write(ctx, from, to, rows)
		if err != nil {
			logger.Error().Err(err).Str("sink", res.Sink).Msg("Sink write failed")
			runsTotal.WithLabelValues(res.Mode, "sink_failed").Inc()
			return nil, fmt.Errorf("write %s: %w", res.Sink, err)
		}
	}

	sinkRowsTotal.WithLabelValues(res.Sink).Add(float64(res.Written))
	runsTotal.WithLabelValues(res.Mode, "ok").Inc()

	res.Duration = time.Since(start)
	logger.Info().Int("rows", res.Rows).Int("written", res.Written).Str("sink", res.Sink).
		Dur("duration", res.Duration).Msg("Ingest complete")
	return res, nil
}

func joinAreas(areas []weather.Area) string {
	s := make([]string, len(areas))
	for i, a := range areas {
		s[i] = a.String()
	}
	return strings.Join(s, ", ")
}
