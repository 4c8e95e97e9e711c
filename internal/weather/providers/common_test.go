package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestCircuitBreaker_TripsAfterFiveFailures(t *testing.T) {
	cb := newCircuitBreaker("test")
	fail := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 1; i <= 4; i++ {
		_, _ = cb.Execute(fail)
		if cb.State() != gobreaker.StateClosed {
			t.Fatalf("state after %d failures = %s, want closed", i, cb.State())
		}
	}
	_, _ = cb.Execute(fail)
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("state after 5 failures = %s, want open", cb.State())
	}
}

func TestDoRequestWithResilience_StopsAtOpenCircuit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 10, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}
	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}

	_, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), build)
	if !errors.Is(err, errCircuitOpen) {
		t.Fatalf("error = %v, want errCircuitOpen", err)
	}
	if hits.Load() != 5 {
		t.Errorf("server hit %d times, want 5", hits.Load())
	}
}

func TestDoRequestWithResilience_ReturnsClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
	}
	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}

	resp, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || hits.Load() != 1 {
		t.Errorf("status=%d hits=%d, want 404 after one attempt", resp.StatusCode, hits.Load())
	}
}
