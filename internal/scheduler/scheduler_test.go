package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/ingest"
)

type fakeIngester struct {
	mu   sync.Mutex
	reqs []ingest.Request
	err  error
}

func (f *fakeIngester) Run(ctx context.Context, req ingest.Request) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Result{RunID: "r1", Rows: 3}, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func TestScheduler_Window(t *testing.T) {
	s := New(&fakeIngester{}, time.Hour, 7, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC) }

	from, to := s.Window()
	if from.Format("2006-01-02") != "2024-02-27" || to.Format("2006-01-02") != "2024-03-05" {
		t.Errorf("Window() = %s..%s", from, to)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	fi := &fakeIngester{}
	s := New(fi, time.Hour, 2, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC) }

	res, err := s.RunOnce(context.Background())
	if err != nil || res.RunID != "r1" {
		t.Fatalf("RunOnce() = %+v, %v", res, err)
	}
	req := fi.reqs[0]
	if req.From != "2023-12-30" || req.To != "2024-01-01" || !req.Parallel {
		t.Errorf("unexpected request %+v", req)
	}

	fi.err = errors.New("frost down")
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Error("expected error from failing ingest")
	}
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	fi := &fakeIngester{}
	s := New(fi, time.Hour, 1, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for fi.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if fi.count() == 0 {
		t.Error("scheduled job did not run")
	}
}
