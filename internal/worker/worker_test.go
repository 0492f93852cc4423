package worker

import (
	"context"
	"testing"
	"time"

	"cronrunner/internal/engine"
	"cronrunner/internal/eventbus"
	"cronrunner/internal/registry"
	"cronrunner/internal/schedule"
)

func newTestWorker() (*Worker, *registry.Registry) {
	reg := registry.New()
	bus := eventbus.New()
	eng := engine.New(bus)
	return New(reg, eng), reg
}

func TestAddStartFiresTrigger(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()

	desc, err := schedule.Every("1s")
	if err != nil {
		t.Fatalf("schedule.Every: %v", err)
	}

	fired := make(chan struct{}, 1)
	rec := registry.JobRecord{
		ID:       "job-1",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	w.Start()
	defer w.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not fire within 3s")
	}
}

func TestTriggerNotFound(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()
	_, err := w.Trigger("nope")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Trigger(nope) error = %v, want *NotFoundError", err)
	}
}

func TestTriggerManual(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()
	desc, _ := schedule.Daily("09:00")
	calls := 0
	rec := registry.JobRecord{
		ID:       "job-2",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error {
			calls++
			return nil
		},
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	result, err := w.Trigger("job-2")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if result.Status != registry.StatusSuccess || calls != 1 {
		t.Fatalf("result = %+v, calls = %d", result, calls)
	}
}

func TestExecuteJobDuringShutdownIsRejected(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()
	w.inflightMu.Lock()
	w.shuttingDown = true
	w.inflightMu.Unlock()

	result := w.executeJob(context.Background(), "whatever", time.Now())
	if result.Status != registry.StatusFailure || result.Attempt != 0 {
		t.Fatalf("result = %+v, want synthetic shutdown failure", result)
	}
	if len(result.RunID) < len("skipped_") || result.RunID[:len("skipped_")] != "skipped_" {
		t.Fatalf("RunID = %q, want skipped_ prefix", result.RunID)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()
	desc, _ := schedule.Every("1h")
	release := make(chan struct{})
	rec := registry.JobRecord{
		ID:       "job-3",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error {
			<-release
			return nil
		},
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	done := make(chan registry.ExecutionResult, 1)
	go func() {
		r, _ := w.Trigger("job-3")
		done <- r
	}()

	time.Sleep(50 * time.Millisecond) // let the run register as in-flight
	close(release)

	report := w.Shutdown(2 * time.Second)
	<-done
	if len(report.Completed) != 1 || len(report.Interrupted) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestShutdownInterruptsSlowRun(t *testing.T) {
	t.Parallel()
	w, _ := newTestWorker()
	desc, _ := schedule.Every("1h")
	rec := registry.JobRecord{
		ID:       "job-4",
		Schedule: desc,
		Handler: func(ctx context.Context, jc registry.JobContext) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	if err := w.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	go func() { _, _ = w.Trigger("job-4") }()
	time.Sleep(50 * time.Millisecond)

	report := w.Shutdown(100 * time.Millisecond)
	if len(report.Interrupted) != 1 {
		t.Fatalf("report = %+v, want one interrupted run", report)
	}
}
