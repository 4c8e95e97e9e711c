package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/frost-ingest/internal/weather"
)

var (
	// ErrNotFound is returned when no observations exist for a station and range.
	ErrNotFound = errors.New("no observations for station")
)

// MemoryStore is a concurrency-safe in-memory observation store. It backs the
// query API in serve mode.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station ID, value: observations ordered by date
	data map[string][]weather.Observation

	// retention configuration
	maxRows int           // max observations per station
	maxAge  time.Duration // drop observations dated before now-maxAge
	now     func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// Zero values are treated as unlimited.
func NewMemoryStore(maxRows int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]weather.Observation),
		maxRows: maxRows,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

// Write replaces every stored observation dated within [from, to) with rows
// and enforces retention.
func (s *MemoryStore) Write(_ context.Context, from, to time.Time, rows []weather.Observation) (int, error) {
	lo, hi := from.Format(weather.DateLayout), to.Format(weather.DateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, obs := range s.data {
		kept := obs[:0]
		for _, o := range obs {
			if o.Date < lo || o.Date >= hi {
				kept = append(kept, o)
			}
		}
		s.data[id] = kept
	}

	touched := make(map[string]bool)
	for _, r := range rows {
		s.data[r.StationID] = append(s.data[r.StationID], r)
		touched[r.StationID] = true
	}

	for id := range touched {
		obs := s.data[id]
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date < obs[j].Date })
		s.data[id] = s.retain(obs)
	}
	for id, obs := range s.data {
		if len(obs) == 0 {
			delete(s.data, id)
		}
	}
	return len(rows), nil
}

func (s *MemoryStore) retain(obs []weather.Observation) []weather.Observation {
	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge).UTC().Format(weather.DateLayout)
		i := sort.Search(len(obs), func(i int) bool { return obs[i].Date >= cutoff })
		obs = obs[i:]
	}
	// Enforce retention by count, keeping the most recent days.
	if s.maxRows > 0 && len(obs) > s.maxRows {
		obs = obs[len(obs)-s.maxRows:]
	}
	return obs
}

// GetRange returns a station's observations dated within [from, to).
func (s *MemoryStore) GetRange(stationID string, from, to time.Time) ([]weather.Observation, error) {
	lo, hi := from.Format(weather.DateLayout), to.Format(weather.DateLayout)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Observation
	for _, o := range s.data[stationID] {
		if o.Date >= lo && o.Date < hi {
			result = append(result, o)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// GetLatest returns the most recent observation for a station.
func (s *MemoryStore) GetLatest(stationID string) (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs := s.data[stationID]
	if len(obs) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return obs[len(obs)-1], nil
}
