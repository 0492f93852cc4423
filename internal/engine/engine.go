// Package engine runs a single job: attempt-with-timeout, retry with
// backoff, event emission, and success/failure callback dispatch.
package engine

import (
	"context"
	"fmt"
	"time"

	"cronrunner/internal/eventbus"
	"cronrunner/internal/registry"
)

const defaultTimeout = 5 * time.Minute

// Engine runs jobs and publishes their lifecycle onto a Bus. It carries
// no mutable state of its own between runs; every Run call is
// independent and safe to invoke concurrently for the same or different
// jobs.
type Engine struct {
	bus *eventbus.Bus
}

// New returns an Engine that publishes to bus.
func New(bus *eventbus.Bus) *Engine {
	return &Engine{bus: bus}
}

// Run executes rec.Handler to completion: one attempt if it succeeds or
// retries are exhausted, otherwise up to config.Retry.Attempts attempts
// with backoff between them. A fresh runID is generated for the run.
func (e *Engine) Run(ctx context.Context, rec registry.JobRecord, scheduledAt time.Time) registry.ExecutionResult {
	return e.RunWithID(ctx, rec, scheduledAt, registry.NewRunID())
}

// RunWithID is Run with a caller-supplied runID, so a caller that needs
// to track the run (e.g. the worker's in-flight table) can register the
// handle before the first event is emitted.
func (e *Engine) RunWithID(ctx context.Context, rec registry.JobRecord, scheduledAt time.Time, runID string) registry.ExecutionResult {
	startedAt := time.Now()

	maxAttempts := 1
	retry := rec.Config.Retry
	if retry != nil && retry.Attempts > 0 {
		maxAttempts = retry.Attempts
	}

	timeout := rec.Config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	e.emit(registry.ExecutionEvent{
		Type:      registry.EventStart,
		JobID:     rec.ID,
		RunID:     runID,
		Timestamp: startedAt,
		Attempt:   1,
	})

	var lastErr error
	attempt := 1
	for {
		jobCtx := registry.JobContext{
			JobID:       rec.ID,
			JobName:     rec.DisplayName(),
			RunID:       runID,
			ScheduledAt: scheduledAt,
			StartedAt:   time.Now(),
			Attempt:     attempt,
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		jobCtx.Signal = attemptCtx

		lastErr = e.runAttempt(attemptCtx, rec.Handler, jobCtx, timeout)
		cancel()

		if lastErr == nil {
			result := registry.ExecutionResult{
				JobID:       rec.ID,
				RunID:       runID,
				Status:      registry.StatusSuccess,
				StartedAt:   startedAt,
				CompletedAt: time.Now(),
				Attempt:     attempt,
			}
			result.Duration = result.CompletedAt.Sub(result.StartedAt)
			e.emit(registry.ExecutionEvent{
				Type:      registry.EventSuccess,
				JobID:     rec.ID,
				RunID:     runID,
				Timestamp: result.CompletedAt,
				Attempt:   attempt,
				Duration:  result.Duration,
			})
			invokeCallback(func() {
				if rec.Config.OnSuccess != nil {
					rec.Config.OnSuccess(jobCtx)
				}
			})
			return result
		}

		if attempt < maxAttempts {
			e.emit(registry.ExecutionEvent{
				Type:      registry.EventRetry,
				JobID:     rec.ID,
				RunID:     runID,
				Timestamp: time.Now(),
				Attempt:   attempt,
			})
			sleep(ctx, retryDelay(attempt, retry))
			attempt++
			continue
		}

		_, isTimeout := lastErr.(*TimeoutError)
		status := registry.StatusFailure
		evtType := registry.EventFailure
		if isTimeout {
			status = registry.StatusTimeout
			evtType = registry.EventTimeout
		}

		result := registry.ExecutionResult{
			JobID:       rec.ID,
			RunID:       runID,
			Status:      status,
			StartedAt:   startedAt,
			CompletedAt: time.Now(),
			Attempt:     attempt,
			Error:       &registry.ExecutionError{Message: lastErr.Error()},
		}
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		e.emit(registry.ExecutionEvent{
			Type:      evtType,
			JobID:     rec.ID,
			RunID:     runID,
			Timestamp: result.CompletedAt,
			Attempt:   attempt,
			Duration:  result.Duration,
			Error:     result.Error,
		})
		invokeCallback(func() {
			if rec.Config.OnFailure != nil {
				rec.Config.OnFailure(lastErr, jobCtx)
			}
		})
		return result
	}
}

// runAttempt races handler(ctx, jobCtx) against attemptCtx's deadline.
func (e *Engine) runAttempt(attemptCtx context.Context, handler registry.Handler, jobCtx registry.JobContext, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- runHandler(attemptCtx, handler, jobCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		// The handler may ignore ctx and keep running; we don't block
		// waiting for it. Its eventual result lands in a buffered
		// channel nobody reads and is dropped.
		return &TimeoutError{Timeout: timeout.String()}
	}
}

// runHandler recovers a panicking handler the same way a thrown
// non-Error value gets coerced to Error(String(v)) in the source design.
func runHandler(ctx context.Context, handler registry.Handler, jobCtx registry.JobContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, jobCtx)
}

func invokeCallback(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func (e *Engine) emit(event registry.ExecutionEvent) {
	if e.bus != nil {
		e.bus.Emit(event)
	}
}

// retryDelay computes d0 * attempt (linear) or d0 * 2^(attempt-1)
// (exponential), where d0 is cfg.InitialDelay or "1s" when cfg is nil or
// empty.
func retryDelay(attempt int, cfg *registry.RetryConfig) time.Duration {
	initial := "1s"
	backoff := registry.BackoffLinear
	if cfg != nil {
		if cfg.InitialDelay != "" {
			initial = cfg.InitialDelay
		}
		if cfg.Backoff != "" {
			backoff = cfg.Backoff
		}
	}
	d0, err := time.ParseDuration(initial)
	if err != nil {
		d0 = time.Second
	}
	if backoff == registry.BackoffExponential {
		return d0 * time.Duration(1<<uint(attempt-1))
	}
	return d0 * time.Duration(attempt)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
