package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

type fakeWarehouse struct {
	mu         sync.Mutex
	statements []string
	auth       string
	warehouse  string
	failOn     string
}

func (f *fakeWarehouse) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.statements = append(f.statements, req.Statement)
	f.auth = r.Header.Get("Authorization")
	f.warehouse = req.WarehouseID
	failOn := f.failOn
	f.mu.Unlock()

	if failOn != "" && strings.HasPrefix(req.Statement, failOn) {
		_, _ = w.Write([]byte(`{"statement_id":"1","status":{"state":"FAILED","error":{"message":"TABLE_OR_VIEW_NOT_FOUND"}}}`))
		return
	}
	_, _ = w.Write([]byte(`{"statement_id":"1","status":{"state":"SUCCEEDED"}}`))
}

func newTestSink(t *testing.T, h http.Handler) *Databricks {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewDatabricks(Config{
		HTTPPath:    "/sql/1.0/warehouses/abc123",
		Catalog:     "main",
		AccessToken: "dapi-token",
		Endpoint:    srv.URL,
	}, zerolog.Nop())
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := weather.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDatabricks_Write(t *testing.T) {
	fw := &fakeWarehouse{}
	sink := newTestSink(t, fw)

	rows := make([]weather.Observation, batchSize+1)
	for i := range rows {
		rows[i] = weather.Observation{StationID: "SN18700", StationName: "Oslo", Area: weather.AreaNO1, Date: "2024-01-01"}
	}

	n, err := sink.Write(context.Background(), mustDay(t, "2024-01-01"), mustDay(t, "2024-02-01"), rows)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(rows) {
		t.Errorf("inserted %d, want %d", n, len(rows))
	}

	// schema, table, delete, two insert batches
	if len(fw.statements) != 5 {
		t.Fatalf("got %d statements, want 5", len(fw.statements))
	}
	if fw.statements[0] != "CREATE SCHEMA IF NOT EXISTS main.raw_frost" {
		t.Errorf("statement 0 = %q", fw.statements[0])
	}
	if !strings.HasPrefix(fw.statements[1], "CREATE TABLE IF NOT EXISTS main.raw_frost.precipitation") {
		t.Errorf("statement 1 = %q", fw.statements[1])
	}
	wantDelete := "DELETE FROM main.raw_frost.precipitation WHERE reference_time >= '2024-01-01' AND reference_time < '2024-02-01'"
	if fw.statements[2] != wantDelete {
		t.Errorf("statement 2 = %q", fw.statements[2])
	}
	if strings.Count(fw.statements[4], "CURRENT_TIMESTAMP()") != 1 {
		t.Errorf("second batch should hold one row")
	}
	if fw.auth != "Bearer dapi-token" || fw.warehouse != "abc123" {
		t.Errorf("auth=%q warehouse=%q", fw.auth, fw.warehouse)
	}
}

func TestDatabricks_StatementFailed(t *testing.T) {
	sink := newTestSink(t, &fakeWarehouse{failOn: "DELETE"})
	_, err := sink.Write(context.Background(), mustDay(t, "2024-01-01"), mustDay(t, "2024-02-01"), nil)
	if !errors.Is(err, ErrStatementFailed) || !strings.Contains(err.Error(), "TABLE_OR_VIEW_NOT_FOUND") {
		t.Errorf("error = %v", err)
	}
}

func TestDatabricks_HTTPError(t *testing.T) {
	sink := newTestSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	_, err := sink.Write(context.Background(), mustDay(t, "2024-01-01"), mustDay(t, "2024-02-01"), nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("error = %v", err)
	}
}

func TestInsertStatement(t *testing.T) {
	mm, qc := 1.5, 0
	got := InsertStatement("c.s.t", []weather.Observation{
		{StationID: "SN1", StationName: "Kjevik O'Hara", Area: weather.AreaNO2, Date: "2024-03-01", PrecipitationMM: &mm, QualityCode: &qc},
		{StationID: "SN2", StationName: "Sola", Area: weather.AreaNO2, Date: "2024-03-01"},
	})
	want := "INSERT INTO c.s.t (station_id, station_name, el_area, reference_time, precipitation_mm, quality_code, ingested_at) VALUES " +
		"('SN1', 'Kjevik O''Hara', 'NO2', '2024-03-01', 1.5, 0, CURRENT_TIMESTAMP()), " +
		"('SN2', 'Sola', 'NO2', '2024-03-01', NULL, NULL, CURRENT_TIMESTAMP())"
	if got != want {
		t.Errorf("InsertStatement() =\n%s\nwant\n%s", got, want)
	}
}

func TestConfig_WarehouseID(t *testing.T) {
	if id := (Config{HTTPPath: "/sql/1.0/warehouses/xyz"}).WarehouseID(); id != "xyz" {
		t.Errorf("WarehouseID() = %q", id)
	}
	if id := (Config{HTTPPath: "xyz"}).WarehouseID(); id != "xyz" {
		t.Errorf("WarehouseID() = %q", id)
	}
}
