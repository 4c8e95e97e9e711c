package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/frost-ingest/internal/weather"
)

const (
	// DefaultFrostBaseURL is the public Frost API root.
	DefaultFrostBaseURL = "https://frost.met.no"

	// PrecipitationElement is the daily precipitation sum element.
	PrecipitationElement = "sum(precipitation_amount P1D)"

	observationsPath = "/observations/v0.jsonld"
	sourcesPath      = "/sources/v0.jsonld"
)

// APIError is a non-"no data" error answer from Frost.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason == "" && e.Message == "" {
		return fmt.Sprintf("frost api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("frost api: HTTP %d: %s: %s", e.Status, e.Reason, e.Message)
}

// FrostConfig holds connection settings for the Frost client.
type FrostConfig struct {
	BaseURL    string
	ClientID   string
	Timeout    time.Duration
	MaxRetries int
}

// FrostClient fetches daily precipitation from the Frost observations API.
// It is safe for concurrent use.
type FrostClient struct {
	baseURL  string
	clientID string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	catalog  *weather.Catalog
	logger   zerolog.Logger
	now      func() time.Time
}

// NewFrostClient builds a client. The catalog names and places stations that
// were not part of the request.
func NewFrostClient(cfg FrostConfig, catalog *weather.Catalog, logger zerolog.Logger) *FrostClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultFrostBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if catalog == nil {
		catalog = weather.DefaultCatalog()
	}

	return &FrostClient{
		baseURL:  baseURL,
		clientID: cfg.ClientID,
		httpCfg: HTTPClientConfig{
			Client: &http.Client{Timeout: timeout},
			Backoff: BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("frost"),
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

type frostErrorBody struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type observationsResponse struct {
	Data  []observationEntry `json:"data"`
	Error *frostErrorBody    `json:"error"`
}

type observationEntry struct {
	SourceID      string `json:"sourceId"`
	ReferenceTime string `json:"referenceTime"`
	Observations  []struct {
		ElementID   string   `json:"elementId"`
		Value       *float64 `json:"value"`
		QualityCode *int     `json:"qualityCode"`
	} `json:"observations"`
}

// Fetch returns the daily precipitation rows for stations over [from, to).
// Frost answering "not found" (404, 412 or reason "Not found") is an empty
// success.
func (c *FrostClient) Fetch(ctx context.Context, stations []weather.Station, from, to time.Time) ([]weather.Observation, error) {
	if len(stations) == 0 {
		return nil, nil
	}
	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}
	sources := strings.Join(ids, ",")
	period := from.Format(weather.DateLayout) + "/" + to.Format(weather.DateLayout)

	q := url.Values{}
	q.Set("sources", sources)
	q.Set("elements", PrecipitationElement)
	q.Set("referencetime", period)
	q.Set("timeoffsets", "PT6H")

	c.logger.Debug().Str("stations", sources).Str("period", period).Msg("Fetching precipitation")

	var body observationsResponse
	status, err := c.get(ctx, observationsPath, q, &body)
	if err != nil {
		return nil, err
	}

	if body.Error != nil {
		if body.Error.Reason == "Not found" || status == http.StatusNotFound || status == http.StatusPreconditionFailed {
			requestsTotal.WithLabelValues(observationsPath, "no_data").Inc()
			c.logger.Warn().Str("stations", sources).Str("period", period).Msg("No data available")
			return nil, nil
		}
		requestsTotal.WithLabelValues(observationsPath, "error").Inc()
		return nil, &APIError{Status: status, Reason: body.Error.Reason, Message: body.Error.Message}
	}
	if status < 200 || status >= 300 {
		if status == http.StatusNotFound || status == http.StatusPreconditionFailed {
			requestsTotal.WithLabelValues(observationsPath, "no_data").Inc()
			return nil, nil
		}
		requestsTotal.WithLabelValues(observationsPath, "error").Inc()
		return nil, &APIError{Status: status, Message: "unexpected response from observations endpoint"}
	}

	requestsTotal.WithLabelValues(observationsPath, "ok").Inc()
	rows := c.flatten(stations, body.Data)
	c.logger.Debug().Str("stations", sources).Int("rows", len(rows)).Msg("Received observations")
	return rows, nil
}

func (c *FrostClient) flatten(requested []weather.Station, data []observationEntry) []weather.Observation {
	known := make(map[string]weather.Station, len(requested))
	for _, st := range requested {
		known[st.ID] = st
	}

	var rows []weather.Observation
	for _, entry := range data {
		id, _, _ := strings.Cut(entry.SourceID, ":")
		date, _, _ := strings.Cut(entry.ReferenceTime, "T")

		st, ok := known[id]
		if !ok {
			st, ok = c.catalog.ByID(id)
		}
		if !ok {
			c.logger.Warn().Str("station", id).Msg("Unknown station, area not resolvable")
			st = weather.Station{ID: id, Name: "Unknown", Area: weather.AreaUnknown}
		}

		for _, obs := range entry.Observations {
			if obs.ElementID != PrecipitationElement {
				continue
			}
			rows = append(rows, weather.Observation{
				StationID:       id,
				StationName:     st.Name,
				Area:            st.Area,
				Date:            date,
				PrecipitationMM: obs.Value,
				QualityCode:     obs.QualityCode,
			})
		}
	}
	return rows
}

// DiscoveredStation is a precipitation station reported by the sources API.
type DiscoveredStation struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	County       string       `json:"county"`
	Municipality string       `json:"municipality"`
	Area         weather.Area `json:"area,omitempty"` // empty when the county is unmapped
	Active       bool         `json:"active"`
}

type sourcesResponse struct {
	Data []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		County       string `json:"county"`
		Municipality string `json:"municipality"`
		ValidTo      string `json:"validTo"`
	} `json:"data"`
	Error *frostErrorBody `json:"error"`
}

// ListStations returns every Norwegian station reporting daily precipitation.
// A station is active when it has no end of validity or one in the future.
func (c *FrostClient) ListStations(ctx context.Context) ([]DiscoveredStation, error) {
	q := url.Values{}
	q.Set("types", "SensorSystem")
	q.Set("elements", PrecipitationElement)
	q.Set("country", "NO")

	var body sourcesResponse
	status, err := c.get(ctx, sourcesPath, q, &body)
	if err != nil {
		return nil, err
	}
	if body.Error != nil {
		requestsTotal.WithLabelValues(sourcesPath, "error").Inc()
		return nil, &APIError{Status: status, Reason: body.Error.Reason, Message: body.Error.Message}
	}
	if status < 200 || status >= 300 {
		requestsTotal.WithLabelValues(sourcesPath, "error").Inc()
		return nil, &APIError{Status: status, Message: "unexpected response from sources endpoint"}
	}
	requestsTotal.WithLabelValues(sourcesPath, "ok").Inc()

	now := c.now().UTC()
	out := make([]DiscoveredStation, 0, len(body.Data))
	for _, s := range body.Data {
		area, _ := weather.CountyToArea(s.County)
		out = append(out, DiscoveredStation{
			ID:           s.ID,
			Name:         s.Name,
			County:       s.County,
			Municipality: s.Municipality,
			Area:         area,
			Active:       isActive(s.ValidTo, now),
		})
	}
	c.logger.Info().Int("total", len(out)).Msg("Received station list")
	return out, nil
}

func isActive(validTo string, now time.Time) bool {
	if validTo == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339, validTo)
	if err != nil {
		date, _, _ := strings.Cut(validTo, "T")
		if t, err = time.Parse(weather.DateLayout, date); err != nil {
			return false
		}
	}
	return t.After(now)
}

// get issues an authenticated GET and decodes the JSON body into out. The
// HTTP status is returned for the caller to interpret.
func (c *FrostClient) get(ctx context.Context, path string, q url.Values, out any) (int, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	u := c.baseURL + path + "?" + q.Encode()
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.clientID, "")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, build)
	if err != nil {
		requestsTotal.WithLabelValues(path, "error").Inc()
		return 0, fmt.Errorf("frost request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Non-JSON error page; let the caller classify the status.
			return resp.StatusCode, nil
		}
		requestsTotal.WithLabelValues(path, "error").Inc()
		return resp.StatusCode, fmt.Errorf("decode frost response: %w", err)
	}
	return resp.StatusCode, nil
}
