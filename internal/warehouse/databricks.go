// Package warehouse loads observations into a Databricks SQL warehouse
// through the SQL Statement Execution API.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/common"
	"github.com/i474232898/frost-ingest/internal/weather"
)

const (
	// Schema and Table name the destination inside the configured catalog.
	Schema = "raw_frost"
	Table  = "precipitation"

	batchSize = 5000
)

// ErrStatementFailed is returned when Databricks reports a FAILED statement.
var ErrStatementFailed = errors.New("databricks statement failed")

// Config holds warehouse connection settings.
type Config struct {
	Hostname    string
	HTTPPath    string // e.g. /sql/1.0/warehouses/<id>
	Catalog     string
	AccessToken string

	// Endpoint overrides the statements URL derived from Hostname.
	Endpoint string
}

// WarehouseID is the last element of the HTTP path.
func (c Config) WarehouseID() string {
	if i := strings.LastIndex(c.HTTPPath, "/"); i >= 0 {
		return c.HTTPPath[i+1:]
	}
	return c.HTTPPath
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "https://" + c.Hostname + "/api/2.0/sql/statements"
}

// Databricks is a weather.Sink writing to <catalog>.raw_frost.precipitation.
type Databricks struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func NewDatabricks(cfg Config, logger zerolog.Logger) *Databricks {
	return &Databricks{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (d *Databricks) Name() string { return "databricks" }

// QualifiedTable returns catalog.schema.table.
func (d *Databricks) QualifiedTable() string {
	return d.cfg.Catalog + "." + Schema + "." + Table
}

// Write creates the schema and table when missing, deletes rows in
// [from, to) and inserts rows in batches.
func (d *Databricks) Write(ctx context.Context, from, to time.Time, rows []weather.Observation) (int, error) {
	if err := d.ensureTable(ctx); err != nil {
		return 0, err
	}

	d.logger.Info().Str("from", from.Format(weather.DateLayout)).Str("to", to.Format(weather.DateLayout)).
		Msg("Deleting existing rows for date range")
	del := fmt.Sprintf("DELETE FROM %s WHERE reference_time >= %s AND reference_time < %s",
		d.QualifiedTable(),
		common.SQLQuote(from.Format(weather.DateLayout)),
		common.SQLQuote(to.Format(weather.DateLayout)))
	if err := d.exec(ctx, del); err != nil {
		return 0, err
	}

	inserted := 0
	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]
		d.logger.Info().Int("batch", start/batchSize+1).Int("rows", len(batch)).Msg("Inserting batch")
		if err := d.exec(ctx, InsertStatement(d.QualifiedTable(), batch)); err != nil {
			return inserted, err
		}
		inserted += len(batch)
	}
	return inserted, nil
}

func (d *Databricks) ensureTable(ctx context.Context) error {
	d.logger.Debug().Str("catalog", d.cfg.Catalog).Msg("Creating schema and table if not exists")
	if err := d.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", d.cfg.Catalog, Schema)); err != nil {
		return err
	}
	return d.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    station_id       STRING  NOT NULL,
    station_name     STRING  NOT NULL,
    el_area          STRING  NOT NULL,
    reference_time   DATE    NOT NULL,
    precipitation_mm DOUBLE,
    quality_code     INT,
    ingested_at      TIMESTAMP
)`, d.QualifiedTable()))
}

// InsertStatement renders a multi-row INSERT with escaped literals.
func InsertStatement(table string, rows []weather.Observation) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (station_id, station_name, el_area, reference_time, precipitation_mm, quality_code, ingested_at) VALUES ")
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		precip, quality := "NULL", "NULL"
		if r.PrecipitationMM != nil {
			precip = strconv.FormatFloat(*r.PrecipitationMM, 'f', -1, 64)
		}
		if r.QualityCode != nil {
			quality = strconv.Itoa(*r.QualityCode)
		}
		fmt.Fprintf(&sb, "(%s, %s, %s, %s, %s, %s, CURRENT_TIMESTAMP())",
			common.SQLQuote(r.StationID), common.SQLQuote(r.StationName),
			common.SQLQuote(string(r.Area)), common.SQLQuote(r.Date), precip, quality)
	}
	return sb.String()
}

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Catalog     string `json:"catalog"`
	Schema      string `json:"schema"`
	Statement   string `json:"statement"`
	WaitTimeout string `json:"wait_timeout"`
	Disposition string `json:"disposition"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"status"`
}

func (d *Databricks) exec(ctx context.Context, statement string) error {
	body, err := json.Marshal(statementRequest{
		WarehouseID: d.cfg.WarehouseID(),
		Catalog:     d.cfg.Catalog,
		Schema:      Schema,
		Statement:   statement,
		WaitTimeout: "30s",
		Disposition: "INLINE",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.endpoint(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	d.logger.Debug().Int("sql_len", len(statement)).Msg("Executing SQL statement")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("databricks request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("databricks: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode databricks response: %w", err)
	}
	if out.Status.State == "FAILED" {
		msg := "unknown SQL error"
		if out.Status.Error != nil && out.Status.Error.Message != "" {
			msg = out.Status.Error.Message
		}
		return fmt.Errorf("%w: %s", ErrStatementFailed, msg)
	}
	return nil
}
