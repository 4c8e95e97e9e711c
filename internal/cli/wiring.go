package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/frost-ingest/internal/config"
	"github.com/i474232898/frost-ingest/internal/logging"
	"github.com/i474232898/frost-ingest/internal/output"
	"github.com/i474232898/frost-ingest/internal/store"
	"github.com/i474232898/frost-ingest/internal/warehouse"
	"github.com/i474232898/frost-ingest/internal/weather"
	"github.com/i474232898/frost-ingest/internal/weather/providers"
)

// Output destinations accepted by --output.
const (
	outputDatabricks = "databricks"
	outputCSV        = "csv"
	outputSQL        = "sql"
	outputMQTT       = "mqtt"
)

func buildCatalog(cfg *config.AppConfig) (*weather.Catalog, error) {
	if cfg.StationsFile == "" {
		return weather.DefaultCatalog(), nil
	}
	return weather.LoadCatalog(cfg.StationsFile)
}

func newFrostClient(cfg *config.AppConfig, catalog *weather.Catalog) *providers.FrostClient {
	return providers.NewFrostClient(providers.FrostConfig{
		BaseURL:    cfg.Frost.BaseURL,
		ClientID:   cfg.Frost.ClientID,
		Timeout:    cfg.Frost.Timeout,
		MaxRetries: cfg.Frost.MaxRetries,
	}, catalog, logging.NewLogger("frost"))
}

// buildFetcher returns the Frost client, wrapped in the Redis cache when
// REDIS_URL is set. The returned func releases the cache connection.
func buildFetcher(cfg *config.AppConfig, catalog *weather.Catalog) (weather.Fetcher, func(), error) {
	client := newFrostClient(cfg, catalog)
	if cfg.Redis.URL == "" {
		return client, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	cached := providers.NewCachedFetcher(client, rdb, cfg.Redis.TTL, logging.NewLogger("cache"))
	return cached, func() { _ = rdb.Close() }, nil
}

// buildSink opens the destination named by kind. The returned func releases
// its resources.
func buildSink(ctx context.Context, cfg *config.AppConfig, kind, csvPath string) (weather.Sink, func(), error) {
	noop := func() {}
	switch kind {
	case outputDatabricks:
		if !cfg.Databricks.Configured() {
			return nil, nil, fmt.Errorf("%w: DATABRICKS_HOSTNAME, DATABRICKS_HTTP_PATH, DATABRICKS_CATALOG and DATABRICKS_ACCESS_TOKEN must be set", config.ErrMissing)
		}
		return warehouse.NewDatabricks(warehouse.Config{
			Hostname:    cfg.Databricks.Hostname,
			HTTPPath:    cfg.Databricks.HTTPPath,
			Catalog:     cfg.Databricks.Catalog,
			AccessToken: cfg.Databricks.AccessToken,
		}, logging.NewLogger("databricks")), noop, nil

	case outputCSV:
		var fs output.FileStorage = output.LocalStorage{}
		if cfg.FTP.Addr != "" {
			fs = &output.FTPStorage{Addr: cfg.FTP.Addr, User: cfg.FTP.User, Password: cfg.FTP.Password}
		}
		return output.NewCSVWriter(csvPath, fs, logging.NewLogger("csv")), noop, nil

	case outputSQL:
		db, err := store.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewSQLStore(db, logging.NewLogger("sql"))
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil

	case outputMQTT:
		if cfg.MQTT.Broker == "" {
			return nil, nil, fmt.Errorf("%w: MQTT_BROKER must be set", config.ErrMissing)
		}
		p, err := output.NewMQTTPublisher(ctx, output.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logging.NewLogger("mqtt"))
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown output %q (want databricks, csv, sql or mqtt)", kind)
}
