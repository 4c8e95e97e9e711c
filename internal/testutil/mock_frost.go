// Package testutil provides a scriptable Frost API stand-in for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// MockFrostResponse is a canned answer.
type MockFrostResponse struct {
	StatusCode int
	Body       string
}

// MockFrost serves /observations and /sources. Observation answers are keyed
// by the requested sources parameter; unknown keys get an empty data list.
type MockFrost struct {
	server *httptest.Server

	mu           sync.Mutex
	observations map[string]MockFrostResponse
	sources      *MockFrostResponse
	requests     []url.Values
	lastUser     string
}

// NewMockFrost starts the server. Callers must Close it.
func NewMockFrost() *MockFrost {
	m := &MockFrost{observations: make(map[string]MockFrostResponse)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the server root, usable as a Frost base URL.
func (m *MockFrost) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockFrost) Close() {
	m.server.Close()
}

// SetObservations scripts the answer for a comma-joined sources list.
func (m *MockFrost) SetObservations(sources string, resp MockFrostResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations[sources] = resp
}

// SetSources scripts the /sources answer.
func (m *MockFrost) SetSources(resp MockFrostResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = &resp
}

// Requests returns a copy of the query parameters received so far.
func (m *MockFrost) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastUser returns the basic-auth user of the latest request.
func (m *MockFrost) LastUser() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUser
}

func (m *MockFrost) handle(w http.ResponseWriter, r *http.Request) {
	user, _, _ := r.BasicAuth()

	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Query())
	m.lastUser = user
	var resp *MockFrostResponse
	switch {
	case strings.HasPrefix(r.URL.Path, "/observations/"):
		if v, ok := m.observations[r.URL.Query().Get("sources")]; ok {
			resp = &v
		}
	case strings.HasPrefix(r.URL.Path, "/sources/"):
		resp = m.sources
	default:
		m.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		_, _ = w.Write([]byte(`{"data":[]}`))
		return
	}
	if resp.StatusCode != 0 {
		w.WriteHeader(resp.StatusCode)
	}
	_, _ = w.Write([]byte(resp.Body))
}

// Observation is one daily value in an ObservationsBody.
type Observation struct {
	SourceID string
	Date     string // YYYY-MM-DD
	Value    *float64
	Quality  *int
}

// ObservationsBody renders a Frost observations payload.
func ObservationsBody(obs ...Observation) string {
	type item struct {
		ElementID   string   `json:"elementId"`
		Value       *float64 `json:"value"`
		QualityCode *int     `json:"qualityCode,omitempty"`
	}
	type entry struct {
		SourceID      string `json:"sourceId"`
		ReferenceTime string `json:"referenceTime"`
		Observations  []item `json:"observations"`
	}
	data := make([]entry, 0, len(obs))
	for _, o := range obs {
		data = append(data, entry{
			SourceID:      o.SourceID,
			ReferenceTime: o.Date + "T06:00:00.000Z",
			Observations: []item{{
				ElementID:   "sum(precipitation_amount P1D)",
				Value:       o.Value,
				QualityCode: o.Quality,
			}},
		})
	}
	b, _ := json.Marshal(map[string]any{"@type": "ObservationResponse", "data": data})
	return string(b)
}

// ErrorBody renders a Frost error payload.
func ErrorBody(code int, reason, message string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":%q,"reason":%q}}`, code, message, reason)
}
