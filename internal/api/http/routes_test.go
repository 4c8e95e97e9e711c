package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/frost-ingest/internal/ingest"
	"github.com/i474232898/frost-ingest/internal/store"
	"github.com/i474232898/frost-ingest/internal/weather"
)

type stubIngester struct {
	got ingest.Request
	res *ingest.Result
	err error
}

func (s *stubIngester) Run(ctx context.Context, req ingest.Request) (*ingest.Result, error) {
	s.got = req
	return s.res, s.err
}

func newTestApp(t *testing.T, ing *stubIngester) (*store.MemoryStore, func(*http.Request) *http.Response) {
	t.Helper()
	mem := store.NewMemoryStore(0, 0)
	if ing == nil {
		ing = &stubIngester{}
	}
	app := NewApp(Deps{Catalog: weather.DefaultCatalog(), Observations: mem, Ingester: ing}, false)

	return mem, func(req *http.Request) *http.Response {
		t.Helper()
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return resp
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, do := newTestApp(t, nil)

	resp := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	resp = do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("metrics status %d", resp.StatusCode)
	}
}

func TestStations(t *testing.T) {
	_, do := newTestApp(t, nil)

	var out struct {
		Count    int               `json:"count"`
		Stations []weather.Station `json:"stations"`
	}
	decode(t, do(httptest.NewRequest(http.MethodGet, "/api/v1/stations?area=no3", nil)), &out)
	if out.Count != 5 || out.Stations[0].Area != weather.AreaNO3 {
		t.Errorf("unexpected stations %+v", out)
	}

	resp := do(httptest.NewRequest(http.MethodGet, "/api/v1/stations?area=NO9", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestObservations(t *testing.T) {
	mem, do := newTestApp(t, nil)
	from, _ := weather.ParseDate("2024-01-01")
	to, _ := weather.ParseDate("2024-02-01")
	v := 2.5
	_, _ = mem.Write(context.Background(), from, to, []weather.Observation{
		{StationID: "SN18700", StationName: "Oslo - Blindern", Area: weather.AreaNO1, Date: "2024-01-10", PrecipitationMM: &v},
	})

	var out struct {
		Observations []weather.Observation `json:"observations"`
	}
	decode(t, do(httptest.NewRequest(http.MethodGet, "/api/v1/observations?station=SN18700&from=2024-01-01&to=2024-02-01", nil)), &out)
	if len(out.Observations) != 1 || *out.Observations[0].PrecipitationMM != 2.5 {
		t.Errorf("unexpected observations %+v", out)
	}

	tests := []struct {
		url  string
		want int
	}{
		{"/api/v1/observations?from=2024-01-01&to=2024-02-01", http.StatusBadRequest},
		{"/api/v1/observations?station=SN18700&from=2024-02-01&to=2024-01-01", http.StatusBadRequest},
		{"/api/v1/observations?station=SN18700&from=yesterday&to=2024-01-01", http.StatusBadRequest},
		{"/api/v1/observations?station=SN00000&from=2024-01-01&to=2024-02-01", http.StatusNotFound},
		{"/api/v1/observations?station=SN50540&from=2024-01-01&to=2024-02-01", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := do(httptest.NewRequest(http.MethodGet, tt.url, nil))
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s: expected status %d, got %d", tt.url, tt.want, resp.StatusCode)
		}
	}
}

func TestLatestObservation(t *testing.T) {
	mem, do := newTestApp(t, nil)
	from, _ := weather.ParseDate("2024-01-01")
	to, _ := weather.ParseDate("2024-02-01")
	v1, v2 := 2.5, 0.4
	_, _ = mem.Write(context.Background(), from, to, []weather.Observation{
		{StationID: "SN18700", Area: weather.AreaNO1, Date: "2024-01-12", PrecipitationMM: &v2},
		{StationID: "SN18700", Area: weather.AreaNO1, Date: "2024-01-10", PrecipitationMM: &v1},
	})

	var out struct {
		Station     weather.Station     `json:"station"`
		Observation weather.Observation `json:"observation"`
	}
	decode(t, do(httptest.NewRequest(http.MethodGet, "/api/v1/observations/latest?station=SN18700", nil)), &out)
	if out.Station.Name != "Oslo - Blindern" || out.Observation.Date != "2024-01-12" {
		t.Errorf("unexpected latest observation %+v", out)
	}

	tests := []struct {
		url  string
		want int
	}{
		{"/api/v1/observations/latest", http.StatusBadRequest},
		{"/api/v1/observations/latest?station=SN00000", http.StatusNotFound},
		{"/api/v1/observations/latest?station=SN50540", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := do(httptest.NewRequest(http.MethodGet, tt.url, nil))
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s: expected status %d, got %d", tt.url, tt.want, resp.StatusCode)
		}
	}
}

func TestIngest(t *testing.T) {
	ing := &stubIngester{res: &ingest.Result{RunID: "abc", Rows: 42, Duration: time.Second}}
	_, do := newTestApp(t, ing)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest",
		strings.NewReader(`{"from":"2024-01-01","to":"2024-02-01","areas":["NO1"],"parallel":true}`))
	req.Header.Set("Content-Type", "application/json")

	var res ingest.Result
	decode(t, do(req), &res)
	if res.RunID != "abc" || res.Rows != 42 {
		t.Errorf("unexpected result %+v", res)
	}
	if !ing.got.Parallel || ing.got.Areas[0] != "NO1" {
		t.Errorf("request not forwarded: %+v", ing.got)
	}
}

func TestIngest_Errors(t *testing.T) {
	fe := &weather.FetchError{StationID: "SN18700", Err: errors.New("HTTP 500")}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", weather.ErrInvalidInput, http.StatusBadRequest},
		{"fetch failed", &weather.AggregateError{Failures: []*weather.FetchError{fe}}, http.StatusBadGateway},
		{"sink failed", errors.New("write sql: disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, do := newTestApp(t, &stubIngester{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(`{"from":"2024-01-01","to":"2024-02-01"}`))
			req.Header.Set("Content-Type", "application/json")
			if resp := do(req); resp.StatusCode != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	_, do := newTestApp(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	if resp := do(req); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
