package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

const cacheKeyPrefix = "frost:obs:"

// CachedFetcher memoizes closed date ranges in Redis. Ranges reaching into
// the future are always fetched fresh. Redis failures fall back to the
// wrapped fetcher.
type CachedFetcher struct {
	next   weather.Fetcher
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewCachedFetcher wraps next with a Redis read-through cache.
func NewCachedFetcher(next weather.Fetcher, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedFetcher {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &CachedFetcher{next: next, redis: client, ttl: ttl, logger: logger, now: time.Now}
}

// CacheKey identifies one request by its station list and range.
func CacheKey(stations []weather.Station, from, to time.Time) string {
	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}
	return cacheKeyPrefix + strings.Join(ids, ",") + ":" +
		from.Format(weather.DateLayout) + ":" + to.Format(weather.DateLayout)
}

func (c *CachedFetcher) Fetch(ctx context.Context, stations []weather.Station, from, to time.Time) ([]weather.Observation, error) {
	if to.After(c.now()) {
		return c.next.Fetch(ctx, stations, from, to)
	}

	key := CacheKey(stations, from, to)
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []weather.Observation
		if jsonErr := json.Unmarshal(data, &rows); jsonErr == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			c.logger.Debug().Str("key", key).Int("rows", len(rows)).Msg("Cache hit")
			return rows, nil
		}
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn().Str("key", key).Msg("Corrupt cache entry, refetching")
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache unavailable, fetching directly")
		return c.next.Fetch(ctx, stations, from, to)
	}

	rows, err := c.next.Fetch(ctx, stations, from, to)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rows)
	if err == nil {
		err = c.redis.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache store failed")
	}
	return rows, nil
}
