package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ErrMissing is returned when a feature is used without its required settings.
var ErrMissing = errors.New("missing configuration")

type FrostConfig struct {
	ClientID   string
	BaseURL    string        `validate:"required,url"`
	Timeout    time.Duration `validate:"gt=0"`
	MaxRetries int           `validate:"min=0,max=10"`
}

type DatabricksConfig struct {
	Hostname    string
	HTTPPath    string
	Catalog     string
	AccessToken string
}

// Configured reports whether every Databricks setting is present.
func (d DatabricksConfig) Configured() bool {
	return d.Hostname != "" && d.HTTPPath != "" && d.Catalog != "" && d.AccessToken != ""
}

type SQLConfig struct {
	Driver string `validate:"oneof=sqlite3 mysql"`
	DSN    string `validate:"required"`
}

type RedisConfig struct {
	URL string // empty disables the response cache
	TTL time.Duration
}

type MQTTConfig struct {
	Broker      string
	ClientID    string `validate:"required"`
	TopicPrefix string `validate:"required"`
}

type FTPConfig struct {
	Addr     string
	User     string
	Password string
}

type ScheduleConfig struct {
	Interval     time.Duration `validate:"gt=0"`
	LookbackDays int           `validate:"min=1"`
}

type StoreConfig struct {
	MaxRowsPerStation int           `validate:"min=0"` // 0 = unlimited
	MaxAge            time.Duration `validate:"min=0"` // 0 = unlimited
}

type AppConfig struct {
	Frost         FrostConfig
	MaxConcurrent int `validate:"min=1,max=5"`
	StationsFile  string

	Databricks DatabricksConfig
	SQL        SQLConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	FTP        FTPConfig

	Schedule ScheduleConfig
	Store    StoreConfig
	Port     string `validate:"required,numeric"`

	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogPretty bool
}

// Load reads configuration from the environment with sensible defaults. A
// .env file in the working directory or its parent is honoured.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Debug().Msg("No .env file found")
		}
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment.
func FromEnv() (*AppConfig, error) {
	var err error
	cfg := &AppConfig{}

	cfg.Frost.ClientID = os.Getenv("FROST_CLIENT_ID")
	cfg.Frost.BaseURL = getenvDefault("FROST_BASE_URL", "https://frost.met.no")
	cfg.Frost.MaxRetries = getenvInt("FROST_MAX_RETRIES", 2)
	if cfg.Frost.Timeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.MaxConcurrent = getenvInt("MAX_CONCURRENT_REQUESTS", 4)
	cfg.StationsFile = os.Getenv("STATIONS_FILE")

	cfg.Databricks = DatabricksConfig{
		Hostname:    os.Getenv("DATABRICKS_HOSTNAME"),
		HTTPPath:    os.Getenv("DATABRICKS_HTTP_PATH"),
		Catalog:     os.Getenv("DATABRICKS_CATALOG"),
		AccessToken: os.Getenv("DATABRICKS_ACCESS_TOKEN"),
	}
	cfg.SQL = SQLConfig{
		Driver: getenvDefault("SQL_DRIVER", "sqlite3"),
		DSN:    getenvDefault("SQL_DSN", "precipitation.db"),
	}

	cfg.Redis.URL = os.Getenv("REDIS_URL")
	if cfg.Redis.TTL, err = getenvDuration("CACHE_TTL", "24h"); err != nil {
		return nil, err
	}

	cfg.MQTT = MQTTConfig{
		Broker:      os.Getenv("MQTT_BROKER"),
		ClientID:    getenvDefault("MQTT_CLIENT_ID", "frost-ingest"),
		TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "frost/precipitation"),
	}
	cfg.FTP = FTPConfig{
		Addr:     os.Getenv("FTP_ADDR"),
		User:     os.Getenv("FTP_USER"),
		Password: os.Getenv("FTP_PASSWORD"),
	}

	if cfg.Schedule.Interval, err = getenvDuration("SCHEDULE_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	cfg.Schedule.LookbackDays = getenvInt("SCHEDULE_LOOKBACK_DAYS", 7)

	cfg.Store.MaxRowsPerStation = getenvInt("STORE_MAX_ROWS", 0)
	if cfg.Store.MaxAge, err = getenvDuration("STORE_MAX_AGE", "0s"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogPretty = getenvBool("LOG_PRETTY", false)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireFrost fails when no Frost client ID is configured.
func (c *AppConfig) RequireFrost() error {
	if c.Frost.ClientID == "" {
		return fmt.Errorf("%w: FROST_CLIENT_ID must be set (register at https://frost.met.no/auth/requestCredentials.html)", ErrMissing)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
