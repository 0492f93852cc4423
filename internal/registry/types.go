// Package registry holds the job data model shared by the compiler,
// engine, worker, and dashboard packages, plus the process-wide job
// table itself. Centralizing the types here (rather than splitting them
// across the packages that produce or consume them) keeps engine and
// worker from importing each other just to share a struct definition.
package registry

import (
	"context"
	"time"

	"cronrunner/internal/schedule"
)

// Backoff selects how RetryConfig.InitialDelay grows between attempts.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// RetryConfig controls attempt count and inter-attempt delay.
type RetryConfig struct {
	// Attempts is the total number of attempts, not the number of retries.
	Attempts     int
	Backoff      Backoff
	InitialDelay string // duration token, e.g. "1s"; default "1s"
}

// Status is the terminal (or in-flight) state of a run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Handler is invoked once per attempt. It should honor ctx.Done() to
// shorten cleanup after a timeout; the engine does not wait for it once
// the attempt's timeout has fired.
type Handler func(ctx context.Context, jobCtx JobContext) error

// JobConfig is the user-supplied configuration for a single job.
type JobConfig struct {
	Name      string // defaults to the job id when empty
	Retry     *RetryConfig
	Timeout   time.Duration // default 5 minutes when zero
	OnSuccess func(jobCtx JobContext)
	OnFailure func(err error, jobCtx JobContext)
}

// JobRecord is the immutable-by-convention unit the Registry stores.
// Every other component holds it by id and looks it up rather than
// caching a copy, so an Apply/Add always sees the latest definition.
type JobRecord struct {
	ID       string
	Name     string
	Schedule schedule.Descriptor
	Config   JobConfig
	Handler  Handler
	FilePath string // optional; set when derived from file discovery
}

// DisplayName returns Name if set, else Config.Name, else the id.
func (r JobRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Config.Name != "" {
		return r.Config.Name
	}
	return r.ID
}

// JobContext is constructed fresh for every attempt and handed to the
// handler and to onSuccess/onFailure.
type JobContext struct {
	JobID       string
	JobName     string
	RunID       string
	ScheduledAt time.Time
	StartedAt   time.Time
	Attempt     int // 1-based
	Signal      context.Context
}

// ExecutionError captures a handler failure the way it would be reified
// across a serialization boundary: a message and an optional stack.
type ExecutionError struct {
	Message string
	Stack   string
}

// ExecutionResult is the terminal outcome of one run (one or more
// attempts of the same job fire).
type ExecutionResult struct {
	JobID       string
	RunID       string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Attempt     int // attempt number of the terminal outcome
	Error       *ExecutionError
}

// EventType names one of the five points in a run's lifecycle that get
// published on the event bus.
type EventType string

const (
	EventStart   EventType = "job:start"
	EventSuccess EventType = "job:success"
	EventFailure EventType = "job:failure"
	EventTimeout EventType = "job:timeout"
	EventRetry   EventType = "job:retry"
)

// ExecutionEvent is the tagged union published to the event bus and
// streamed verbatim over SSE.
type ExecutionEvent struct {
	Type      EventType
	JobID     string
	RunID     string
	Timestamp time.Time
	Attempt   int
	Duration  time.Duration    // job:success|failure|timeout only
	Error     *ExecutionError  // job:failure|timeout only
}
