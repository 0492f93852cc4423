package dashboard

import (
	"sync"
	"time"

	"cronrunner/internal/eventbus"
	"cronrunner/internal/registry"
)

// Entry is one completed run, as the dashboard renders it.
type Entry struct {
	RunID       string                  `json:"runId"`
	Status      registry.Status         `json:"status"`
	StartedAt   time.Time               `json:"startedAt"`
	CompletedAt time.Time               `json:"completedAt"`
	Duration    time.Duration           `json:"duration"`
	Attempt     int                     `json:"attempt"`
	Error       *registry.ExecutionError `json:"error,omitempty"`
}

// History keeps the last N run entries per job, newest first, built
// from the event stream rather than owned by engine/worker directly —
// the dashboard is the only consumer that needs this retention.
type History struct {
	mu    sync.Mutex
	byJob map[string][]Entry
	max   int
}

// NewHistory returns a History retaining at most max entries per job.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 50
	}
	return &History{byJob: make(map[string][]Entry), max: max}
}

// Subscribe attaches h to bus's success/failure/timeout events and
// returns a function that detaches all three listeners.
func (h *History) Subscribe(bus *eventbus.Bus) eventbus.Unsubscribe {
	offs := []eventbus.Unsubscribe{
		bus.On(registry.EventSuccess, h.record),
		bus.On(registry.EventFailure, h.record),
		bus.On(registry.EventTimeout, h.record),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (h *History) record(ev registry.ExecutionEvent) {
	status := registry.StatusSuccess
	switch ev.Type {
	case registry.EventFailure:
		status = registry.StatusFailure
	case registry.EventTimeout:
		status = registry.StatusTimeout
	}

	entry := Entry{
		RunID:       ev.RunID,
		Status:      status,
		CompletedAt: ev.Timestamp,
		StartedAt:   ev.Timestamp.Add(-ev.Duration),
		Duration:    ev.Duration,
		Attempt:     ev.Attempt,
		Error:       ev.Error,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	entries := append([]Entry{entry}, h.byJob[ev.JobID]...)
	if len(entries) > h.max {
		entries = entries[:h.max]
	}
	h.byJob[ev.JobID] = entries
}

// Runs returns jobID's history, newest first.
func (h *History) Runs(jobID string) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.byJob[jobID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Last returns jobID's most recent entry, if any.
func (h *History) Last(jobID string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.byJob[jobID]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}
