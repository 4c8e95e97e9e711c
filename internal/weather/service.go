package weather

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxConcurrentRequests is the default number of simultaneous provider calls.
// Frost allows 5; one slot is left for requests made outside a run.
const MaxConcurrentRequests = 4

// Run modes, also used as metric labels.
const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// Service orchestrates fetch runs against a single Fetcher. All runs share
// one admission gate, so at most maxConcurrent fetches are in flight across
// every concurrent RunParallel call.
type Service struct {
	fetcher       Fetcher
	pool          *taskPool
	maxConcurrent int
	logger        zerolog.Logger
}

// NewService creates a Service whose fetches never exceed maxConcurrent in
// flight. A non-positive value means MaxConcurrentRequests.
func NewService(fetcher Fetcher, maxConcurrent int, logger zerolog.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = MaxConcurrentRequests
	}
	pool, err := newTaskPool(maxConcurrent)
	if err != nil {
		// only a non-positive size fails, excluded above
		panic(err)
	}
	return &Service{
		fetcher:       fetcher,
		pool:          pool,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// MaxConcurrent returns the size of the shared admission gate.
func (s *Service) MaxConcurrent() int {
	return s.maxConcurrent
}

// Close releases the admission gate. Runs started afterwards fail every task.
func (s *Service) Close() {
	s.pool.Release()
}

// RunParallel splits [from, to) into yearly chunks, fetches every
// (station, chunk) pair with at most limit calls of this run in flight, and
// waits for all of them. limit only narrows the shared gate; a larger value
// is capped at MaxConcurrent. If any task fails the rows are discarded and an
// *AggregateError is returned.
func (s *Service) RunParallel(ctx context.Context, stations []Station, from, to time.Time, limit int) ([]Observation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: concurrency limit must be positive (got %d)", ErrInvalidInput, limit)
	}
	if len(stations) == 0 {
		return nil, ErrEmptyInput
	}
	limit = min(limit, s.maxConcurrent)

	chunks, err := YearlyChunks(from, to)
	if err != nil {
		return nil, err
	}
	items, err := Plan(stations, chunks)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("tasks", len(items)).
		Int("stations", len(stations)).
		Int("chunks", len(chunks)).
		Int("max_concurrent", limit).
		Msg("Parallel fetch")

	start := time.Now()
	rows, err := Aggregate(s.execute(ctx, items, limit))
	if err != nil {
		return nil, err
	}

	fetchRowsTotal.WithLabelValues(ModeParallel).Add(float64(len(rows)))
	s.logger.Info().
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("All parallel fetches complete")
	return rows, nil
}

// RunSequential fetches the whole station set over the whole range in one
// call. A failure is reported as an *AggregateError with a single entry.
func (s *Service) RunSequential(ctx context.Context, stations []Station, from, to time.Time) ([]Observation, error) {
	if len(stations) == 0 {
		return nil, ErrEmptyInput
	}
	from, to = truncateDay(from), truncateDay(to)
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from %s must be before to %s",
			ErrInvalidInput, from.Format(DateLayout), to.Format(DateLayout))
	}

	ids := make([]string, 0, len(stations))
	for _, st := range stations {
		ids = append(ids, st.ID)
	}
	item := WorkItem{
		Station: Station{ID: strings.Join(ids, ",")},
		Chunk:   DateChunk{Start: from, End: to},
	}

	rows, err := s.fetch(ctx, ModeSequential, stations, item.Chunk)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("stations", item.Station.ID).
			Str("period", item.Chunk.String()).
			Msg("Fetch failed")
	}

	rows, err = Aggregate([]TaskOutcome{{Item: item, Rows: rows, Err: err}})
	if err != nil {
		return nil, err
	}
	fetchRowsTotal.WithLabelValues(ModeSequential).Add(float64(len(rows)))
	return rows, nil
}

// execute runs every item exactly once and returns once all of them have
// finished. A task needs a slot of this run (limit) and one of the shared pool.
func (s *Service) execute(ctx context.Context, items []WorkItem, limit int) []TaskOutcome {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make([]TaskOutcome, 0, len(items))
		runSlots = make(chan struct{}, limit)
	)

	record := func(o TaskOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	for _, item := range items {
		runSlots <- struct{}{}
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer func() { <-runSlots }()
			defer wg.Done()

			rows, err := s.fetch(ctx, ModeParallel, []Station{item.Station}, item.Chunk)
			if err != nil {
				s.logger.Error().
					Err(err).
					Str("station", item.Station.ID).
					Str("from", item.Chunk.Start.Format(DateLayout)).
					Str("to", item.Chunk.End.Format(DateLayout)).
					Msg("Fetch failed")
			}
			record(TaskOutcome{Item: item, Rows: rows, Err: err})
		})
		if submitErr != nil {
			<-runSlots
			wg.Done()
			record(TaskOutcome{Item: item, Err: fmt.Errorf("submit task: %w", submitErr)})
		}
	}

	wg.Wait()
	return outcomes
}

// fetch invokes the Fetcher once, turning a panic into an error so the caller
// always gets an outcome.
func (s *Service) fetch(ctx context.Context, mode string, stations []Station, chunk DateChunk) (rows []Observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("panic: %v", r)
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		fetchTasksTotal.WithLabelValues(mode, outcome).Inc()
	}()

	fetchInFlight.Inc()
	defer fetchInFlight.Dec()

	start := time.Now()
	defer func() {
		fetchTaskDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	return s.fetcher.Fetch(ctx, stations, chunk.Start, chunk.End)
}
