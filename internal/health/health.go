// Package health runs the optional liveness endpoint: GET /health
// returns {status:"ok", jobs:<n>, uptime:<s>}. The app starts it only
// when the runner config sets health.enabled, which defaults to off, also
// when cronrunner runs as a standalone worker process.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"cronrunner/internal/logging"
)

// JobCounter reports how many jobs are currently registered. *registry.Registry
// satisfies this via its Size method.
type JobCounter interface {
	Size() int
}

// Server serves the /health endpoint on its own listener.
type Server struct {
	addr    string
	jobs    JobCounter
	log     logging.Logger
	started time.Time

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

// New returns a Server bound to addr (":8080" if empty) that reports
// jobs.Size() in its response body.
func New(addr string, jobs JobCounter, log logging.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{addr: addr, jobs: jobs, log: log}
}

type statusBody struct {
	Status string `json:"status"`
	Jobs   int    `json:"jobs"`
	Uptime int64  `json:"uptime"`
}

// Start binds the listener and begins serving in the background. It is
// a no-op if already started.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.started = time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handle)

	srv := &http.Server{Handler: mux}
	s.ln = ln
	s.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if !s.log.IsZero() {
				s.log.Error("health server stopped with error", logging.Err(err))
			}
		}
	}()

	if !s.log.IsZero() {
		s.log.Info("health server started", logging.String("addr", ln.Addr().String()))
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(s.started).Seconds())
	jobs := 0
	if s.jobs != nil {
		jobs = s.jobs.Size()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(statusBody{Status: "ok", Jobs: jobs, Uptime: uptime})
}

// Stop gracefully shuts the server down, waiting at most until ctx is
// done. A nil/never-started Server stops trivially.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if ln != nil {
		defer func() { _ = ln.Close() }()
	}
	return srv.Shutdown(ctx)
}
