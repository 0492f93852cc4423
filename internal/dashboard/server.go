// Package dashboard exposes the read-only HTTP/SSE operator UI backend:
// job listing, per-job run history, manual triggering, and a live
// event stream. It is a thin adapter over registry, worker, and
// eventbus — it owns no scheduling state of its own besides the
// bounded run-history ring.
package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"cronrunner/internal/eventbus"
	"cronrunner/internal/logging"
	"cronrunner/internal/registry"
	"cronrunner/internal/worker"
)

// Server wires the dashboard's chi router.
type Server struct {
	reg *registry.Registry
	wrk *worker.Worker
	bus *eventbus.Bus
	log logging.Logger

	history *History
	// trigger is rate-limited separately from the read endpoints: an
	// operator mashing the trigger button shouldn't be able to pile up
	// unbounded concurrent runs of the same job.
	triggerLimiter *rate.Limiter
}

// New returns a Server backed by reg, wrk, and bus. It subscribes its
// own History ring to bus immediately.
func New(reg *registry.Registry, wrk *worker.Worker, bus *eventbus.Bus, log logging.Logger) *Server {
	s := &Server{
		reg:            reg,
		wrk:            wrk,
		bus:            bus,
		log:            log,
		history:        NewHistory(50),
		triggerLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	s.history.Subscribe(bus)
	return s
}

// Router builds the dashboard's HTTP handler, CORS-permissive per its
// spec: this is a local operator tool, not a tenant-facing API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(corsPermissive)

	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Get("/api/jobs/{id}/runs", s.handleGetRuns)
	r.Post("/api/jobs/{id}/trigger", s.handleTrigger)
	r.Get("/api/events", s.handleEvents)
	return r
}

func corsPermissive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type jobProjection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Cron      string     `json:"cron"`
	Timezone  string     `json:"timezone,omitempty"`
	Status    string     `json:"status"`
	LastRun   *Entry     `json:"lastRun"`
	NextRun   *time.Time `json:"nextRun"`
}

type jobDetail struct {
	jobProjection
	Config struct {
		Retry   *registry.RetryConfig `json:"retry,omitempty"`
		Timeout string                `json:"timeout,omitempty"`
	} `json:"config"`
}

func (s *Server) project(rec registry.JobRecord, running map[string]bool) jobProjection {
	status := "idle"
	if running[rec.ID] {
		status = "running"
	} else if last, ok := s.history.Last(rec.ID); ok {
		switch last.Status {
		case registry.StatusSuccess:
			status = "success"
		default:
			status = "failed"
		}
	}

	var lastRun *Entry
	if last, ok := s.history.Last(rec.ID); ok {
		lr := last
		lastRun = &lr
	}

	var nextRun *time.Time
	if nr, err := s.wrk.GetNextRun(rec.ID); err == nil {
		nextRun = &nr
	}

	return jobProjection{
		ID:       rec.ID,
		Name:     rec.DisplayName(),
		Schedule: rec.Schedule.HumanReadable,
		Cron:     rec.Schedule.Cron,
		Timezone: rec.Schedule.Timezone,
		Status:   status,
		LastRun:  lastRun,
		NextRun:  nextRun,
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	running := s.wrk.RunningJobIDs()
	records := s.reg.GetAll()
	out := make([]jobProjection, 0, len(records))
	for _, rec := range records {
		out = append(out, s.project(rec, running))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.reg.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	running := s.wrk.RunningJobIDs()
	detail := jobDetail{jobProjection: s.project(rec, running)}
	detail.Config.Retry = rec.Config.Retry
	if rec.Config.Timeout > 0 {
		detail.Config.Timeout = rec.Config.Timeout.String()
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.reg.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.history.Runs(id))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.reg.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	if !s.triggerLimiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "rate limited", "jobId": id})
		return
	}
	go func() {
		if _, err := s.wrk.Trigger(id); err != nil && !s.log.IsZero() {
			s.log.Warn("manual trigger failed", logging.String("job_id", id), logging.Err(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "triggered", "jobId": id})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
