package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/ingest"
	"github.com/i474232898/frost-ingest/internal/weather"
)

// Ingester runs one ingest request.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Scheduler periodically ingests the trailing lookback window.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	interval  time.Duration
	lookback  int
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a new Scheduler.
func New(ingester Ingester, interval time.Duration, lookbackDays int, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ingester:  ingester,
		interval:  interval,
		lookback:  lookbackDays,
		timeout:   30 * time.Minute,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", interval).Int("lookback_days", s.lookback).Msg("Scheduler started")
	return nil
}

// Window returns the [from, to) range ending today (UTC, exclusive).
func (s *Scheduler) Window() (from, to time.Time) {
	now := s.now().UTC()
	to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := s.lookback
	if days <= 0 {
		days = 1
	}
	return to.AddDate(0, 0, -days), to
}

// RunOnce ingests the current window in parallel mode.
func (s *Scheduler) RunOnce(ctx context.Context) (*ingest.Result, error) {
	from, to := s.Window()
	s.logger.Info().Str("from", from.Format(weather.DateLayout)).Str("to", to.Format(weather.DateLayout)).
		Msg("Running scheduled ingest")

	res, err := s.ingester.Run(ctx, ingest.Request{
		From:     from.Format(weather.DateLayout),
		To:       to.Format(weather.DateLayout),
		Parallel: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled ingest failed")
		return nil, err
	}
	s.logger.Info().Str("run_id", res.RunID).Int("rows", res.Rows).Msg("Completed scheduled ingest")
	return res, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
