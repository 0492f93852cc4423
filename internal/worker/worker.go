// Package worker binds registered jobs to cron triggers, executes them
// on fire, tracks in-flight runs, and implements graceful shutdown and
// manual triggering.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cronrunner/internal/cronspec"
	"cronrunner/internal/engine"
	"cronrunner/internal/registry"
)

type inFlight struct {
	jobID string
	done  chan registry.ExecutionResult
}

// Worker is the scheduler: it owns one cronspec.Trigger per registered
// job and the in-flight table of runs that haven't settled yet.
type Worker struct {
	reg *registry.Registry
	eng *engine.Engine
	ev  *cronspec.Evaluator

	mu       sync.Mutex
	triggers map[string]*cronspec.Trigger
	running  bool

	inflightMu   sync.Mutex
	inflight     map[string]*inFlight
	shuttingDown bool
}

// New returns a Worker bound to reg and eng, with its own Evaluator for
// NextRun queries.
func New(reg *registry.Registry, eng *engine.Engine) *Worker {
	return &Worker{
		reg:      reg,
		eng:      eng,
		ev:       cronspec.New(),
		triggers: make(map[string]*cronspec.Trigger),
		inflight: make(map[string]*inFlight),
	}
}

// Add registers rec and arms a trigger for it. If rec.ID is already
// registered, the old record and trigger are replaced. The new trigger
// starts immediately iff the Worker itself is currently running.
func (w *Worker) Add(rec registry.JobRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.triggers[rec.ID]; ok {
		old.Stop()
		delete(w.triggers, rec.ID)
	}
	w.reg.Remove(rec.ID)

	if err := w.reg.Register(rec); err != nil {
		return err
	}

	trig := cronspec.NewTrigger(rec.Schedule.Cron, rec.Schedule.Timezone, func(firedAt time.Time) {
		w.dispatch(rec.ID, firedAt)
	})
	if err := trig.Err(); err != nil {
		w.reg.Remove(rec.ID)
		return err
	}
	w.triggers[rec.ID] = trig
	if w.running {
		trig.Start()
	}
	return nil
}

// Remove stops and detaches jobID's trigger and removes it from the
// registry.
func (w *Worker) Remove(jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	trig, ok := w.triggers[jobID]
	if !ok {
		return false
	}
	trig.Stop()
	delete(w.triggers, jobID)
	return w.reg.Remove(jobID)
}

// Start arms every registered trigger. Calling Start twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	for _, trig := range w.triggers {
		trig.Start()
	}
}

// Stop pauses every trigger. It does not cancel in-flight runs.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	for _, trig := range w.triggers {
		trig.Stop()
	}
}

// dispatch is the trigger fire callback: it spawns the run on its own
// goroutine so a slow handler never delays this job's own trigger loop
// or another job's fire.
func (w *Worker) dispatch(jobID string, firedAt time.Time) {
	go w.executeJob(context.Background(), jobID, firedAt)
}

// executeJob runs jobID's handler through the engine. While shutting
// down it returns a synthetic failure without invoking the handler.
func (w *Worker) executeJob(ctx context.Context, jobID string, scheduledAt time.Time) registry.ExecutionResult {
	w.inflightMu.Lock()
	shuttingDown := w.shuttingDown
	w.inflightMu.Unlock()
	if shuttingDown {
		return shutdownResult(jobID)
	}

	rec, ok := w.reg.Get(jobID)
	if !ok {
		return registry.ExecutionResult{
			JobID:  jobID,
			Status: registry.StatusFailure,
			Error:  &registry.ExecutionError{Message: (&NotFoundError{JobID: jobID}).Error()},
		}
	}

	runID := registry.NewRunID()
	handle := &inFlight{jobID: jobID, done: make(chan registry.ExecutionResult, 1)}

	w.inflightMu.Lock()
	w.inflight[runID] = handle
	w.inflightMu.Unlock()

	result := w.eng.RunWithID(ctx, rec, scheduledAt, runID)

	w.inflightMu.Lock()
	delete(w.inflight, runID)
	w.inflightMu.Unlock()
	handle.done <- result

	return result
}

// Trigger manually fires jobID. Unlike a cron fire, "not found" is
// surfaced to the caller instead of being silently impossible.
func (w *Worker) Trigger(jobID string) (registry.ExecutionResult, error) {
	if _, ok := w.reg.Get(jobID); !ok {
		return registry.ExecutionResult{}, &NotFoundError{JobID: jobID}
	}
	return w.executeJob(context.Background(), jobID, time.Now()), nil
}

// RunningJobIDs returns the set of job ids with at least one in-flight
// run right now. Used by the dashboard adapter to compute each job's
// "running" status.
func (w *Worker) RunningJobIDs() map[string]bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	running := make(map[string]bool, len(w.inflight))
	for _, h := range w.inflight {
		running[h.jobID] = true
	}
	return running
}

// GetNextRun delegates to the Evaluator for jobID's schedule.
func (w *Worker) GetNextRun(jobID string) (time.Time, error) {
	rec, ok := w.reg.Get(jobID)
	if !ok {
		return time.Time{}, &NotFoundError{JobID: jobID}
	}
	return w.ev.NextRun(rec.Schedule.Cron, rec.Schedule.Timezone, time.Now())
}

// ShutdownReport is the {completed, interrupted} pair Shutdown returns.
type ShutdownReport struct {
	Completed   []string // runIDs that settled before the deadline
	Interrupted []string // runIDs still outstanding when the deadline elapsed
}

// Shutdown stops every trigger, rejects new fires, and waits up to
// timeout for in-flight runs to settle. shuttingDown is cleared before
// returning, regardless of outcome.
func (w *Worker) Shutdown(timeout time.Duration) ShutdownReport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	w.inflightMu.Lock()
	w.shuttingDown = true
	handles := make(map[string]*inFlight, len(w.inflight))
	for id, h := range w.inflight {
		handles[id] = h
	}
	w.inflightMu.Unlock()

	w.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	type settled struct{ id string }
	fanin := make(chan settled, len(handles))
	for id, h := range handles {
		id, h := id, h
		go func() {
			<-h.done
			fanin <- settled{id: id}
		}()
	}

	report := ShutdownReport{}
	remaining := make(map[string]struct{}, len(handles))
	for id := range handles {
		remaining[id] = struct{}{}
	}

loop:
	for len(remaining) > 0 {
		select {
		case s := <-fanin:
			report.Completed = append(report.Completed, s.id)
			delete(remaining, s.id)
		case <-deadline.C:
			break loop
		}
	}
	for id := range remaining {
		report.Interrupted = append(report.Interrupted, id)
	}

	w.inflightMu.Lock()
	w.shuttingDown = false
	w.inflightMu.Unlock()

	return report
}

func shutdownResult(jobID string) registry.ExecutionResult {
	now := time.Now()
	return registry.ExecutionResult{
		JobID:       jobID,
		RunID:       fmt.Sprintf("skipped_%d", now.UnixMilli()),
		Status:      registry.StatusFailure,
		StartedAt:   now,
		CompletedAt: now,
		Attempt:     0,
		Error:       &registry.ExecutionError{Message: shutdownRejection().Error()},
	}
}
