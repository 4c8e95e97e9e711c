package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"

	insertBatchSize = 500
)

// Open connects to a sqlite3 or mysql database and verifies connectivity.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func sqliteDSN(path string) (string, error) {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path), nil
}

// SQLStore keeps observations in a relational precipitation table.
type SQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLStore wraps an open database. Call Migrate before the first Write.
func NewSQLStore(db *sql.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

func (s *SQLStore) Name() string { return "sql" }

// Migrate creates the precipitation table if missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS precipitation (
		station_id       VARCHAR(16)  NOT NULL,
		station_name     VARCHAR(128) NOT NULL,
		el_area          VARCHAR(4)   NOT NULL,
		reference_time   VARCHAR(10)  NOT NULL,
		precipitation_mm DOUBLE,
		quality_code     INTEGER,
		ingested_at      TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create precipitation table: %w", err)
	}
	return nil
}

// Write deletes rows dated within [from, to) and inserts rows, atomically.
func (s *SQLStore) Write(ctx context.Context, from, to time.Time, rows []weather.Observation) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"DELETE FROM precipitation WHERE reference_time >= ? AND reference_time < ?",
		from.Format(weather.DateLayout), to.Format(weather.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info().Int64("rows", n).Msg("Deleted existing rows in range")
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		batch := rows[start:end]

		var sb strings.Builder
		sb.WriteString("INSERT INTO precipitation (station_id, station_name, el_area, reference_time, precipitation_mm, quality_code) VALUES ")
		args := make([]any, 0, len(batch)*6)
		for i, r := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, r.StationID, r.StationName, string(r.Area), r.Date, r.PrecipitationMM, r.QualityCode)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return 0, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		s.logger.Debug().Int("from", start).Int("to", end).Msg("Inserted batch")
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// GetRange returns a station's observations dated within [from, to), ordered by date.
func (s *SQLStore) GetRange(ctx context.Context, stationID string, from, to time.Time) ([]weather.Observation, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT station_id, station_name, el_area, reference_time, precipitation_mm, quality_code
		FROM precipitation
		WHERE station_id = ? AND reference_time >= ? AND reference_time < ?
		ORDER BY reference_time`,
		stationID, from.Format(weather.DateLayout), to.Format(weather.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rs.Close()

	var out []weather.Observation
	for rs.Next() {
		var (
			o    weather.Observation
			area string
			mm   sql.NullFloat64
			qc   sql.NullInt64
		)
		if err := rs.Scan(&o.StationID, &o.StationName, &area, &o.Date, &mm, &qc); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Area = weather.Area(area)
		if mm.Valid {
			v := mm.Float64
			o.PrecipitationMM = &v
		}
		if qc.Valid {
			v := int(qc.Int64)
			o.QualityCode = &v
		}
		out = append(out, o)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
