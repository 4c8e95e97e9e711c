package config

import (
	"errors"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"FROST_CLIENT_ID", "FROST_BASE_URL", "MAX_CONCURRENT_REQUESTS", "HTTP_TIMEOUT",
		"SQL_DRIVER", "SQL_DSN", "CACHE_TTL", "SCHEDULE_INTERVAL", "PORT", "LOG_LEVEL", "LOG_PRETTY"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.MaxConcurrent)
	}
	if cfg.Frost.BaseURL != "https://frost.met.no" || cfg.Frost.Timeout != 30*time.Second || cfg.Frost.MaxRetries != 2 {
		t.Errorf("unexpected frost config %+v", cfg.Frost)
	}
	if cfg.SQL.Driver != "sqlite3" || cfg.SQL.DSN != "precipitation.db" {
		t.Errorf("unexpected sql config %+v", cfg.SQL)
	}
	if cfg.Redis.TTL != 24*time.Hour || cfg.Schedule.Interval != 24*time.Hour || cfg.Schedule.LookbackDays != 7 {
		t.Errorf("unexpected durations %+v %+v", cfg.Redis, cfg.Schedule)
	}
	if cfg.MQTT.TopicPrefix != "frost/precipitation" || cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Databricks.Configured() {
		t.Error("Databricks should not be configured by default")
	}
	if err := cfg.RequireFrost(); !errors.Is(err, ErrMissing) {
		t.Errorf("RequireFrost() = %v, want ErrMissing", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("FROST_CLIENT_ID", "abc-123")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "2")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("SQL_DRIVER", "mysql")
	t.Setenv("SQL_DSN", "user:pw@tcp(localhost:3306)/frost")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("DATABRICKS_HOSTNAME", "adb-1.azuredatabricks.net")
	t.Setenv("DATABRICKS_HTTP_PATH", "/sql/1.0/warehouses/abc")
	t.Setenv("DATABRICKS_CATALOG", "main")
	t.Setenv("DATABRICKS_ACCESS_TOKEN", "dapi")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.MaxConcurrent != 2 || cfg.Frost.Timeout != 5*time.Second || !cfg.LogPretty {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SQL.Driver != "mysql" {
		t.Errorf("SQL.Driver = %s", cfg.SQL.Driver)
	}
	if !cfg.Databricks.Configured() {
		t.Error("Databricks should be configured")
	}
	if err := cfg.RequireFrost(); err != nil {
		t.Errorf("RequireFrost() = %v", err)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"MAX_CONCURRENT_REQUESTS": "9",
		"SQL_DRIVER":              "postgres",
		"HTTP_TIMEOUT":            "soon",
		"LOG_LEVEL":               "chatty",
		"PORT":                    "http",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("FromEnv() with %s=%s should fail", key, value)
			}
		})
	}
}
