package weather

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fetcher abstracts the precipitation data provider.
//
// Fetch returns observations for the given stations over [from, to). A range
// without data is an empty success, never an error.
type Fetcher interface {
	Fetch(ctx context.Context, stations []Station, from, to time.Time) ([]Observation, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, stations []Station, from, to time.Time) ([]Observation, error)

func (f FetcherFunc) Fetch(ctx context.Context, stations []Station, from, to time.Time) ([]Observation, error) {
	return f(ctx, stations, from, to)
}

// Sink is the contract every output destination (file, warehouse, bus, memory)
// must satisfy. Write replaces whatever the sink already holds for [from, to)
// where the destination supports it, and returns the number of rows written.
type Sink interface {
	Name() string
	Write(ctx context.Context, from, to time.Time, rows []Observation) (int, error)
}

// MultiSink writes the same rows to several sinks in order and stops at the
// first failure.
type MultiSink []Sink

func (m MultiSink) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m MultiSink) Write(ctx context.Context, from, to time.Time, rows []Observation) (int, error) {
	written := 0
	for _, s := range m {
		n, err := s.Write(ctx, from, to, rows)
		if err != nil {
			return written, fmt.Errorf("sink %s: %w", s.Name(), err)
		}
		written = n
	}
	return written, nil
}
