package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cronrunner/internal/engine"
	"cronrunner/internal/eventbus"
	"cronrunner/internal/logging"
	"cronrunner/internal/registry"
	"cronrunner/internal/schedule"
	"cronrunner/internal/worker"
)

func newTestServer(t *testing.T) (*Server, *worker.Worker) {
	t.Helper()
	reg := registry.New()
	bus := eventbus.New()
	eng := engine.New(bus)
	w := worker.New(reg, eng)
	s := New(reg, w, bus, logging.Nop())
	return s, w
}

func TestListJobsEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var jobs []jobProjection
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %+v, want empty", jobs)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTriggerAndHistory(t *testing.T) {
	s, w := newTestServer(t)
	desc, _ := schedule.Daily("09:00")
	done := make(chan struct{})
	rec := registry.JobRecord{
		ID:       "job-1",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error {
			close(done)
			return nil
		},
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/job-1/trigger", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d", rr.Code)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run within 2s")
	}
	time.Sleep(20 * time.Millisecond) // let the success event land in history

	runsReq := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/runs", nil)
	runsRec := httptest.NewRecorder()
	s.Router().ServeHTTP(runsRec, runsReq)

	var entries []Entry
	if err := json.Unmarshal(runsRec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != registry.StatusSuccess {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestEventsStreamSendsConnectedMessage(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	if len(body) == 0 {
		t.Fatal("expected at least the connected message")
	}
}

func TestTriggerIsRateLimited(t *testing.T) {
	s, w := newTestServer(t)
	desc, _ := schedule.Daily("09:00")
	rec := registry.JobRecord{
		ID:       "job-rl",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error { return nil },
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var lastCode int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/job-rl/trigger", nil)
		rr := httptest.NewRecorder()
		s.Router().ServeHTTP(rr, req)
		lastCode = rr.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("after bursting past the limiter, status = %d, want 429", lastCode)
	}
}
