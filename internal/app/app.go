// Package app wires cronrunner's ambient services (config, logging,
// health, dashboard) around the scheduling core (registry, eventbus,
// engine, worker) into a single runnable unit. It is the collaborator
// cmd/cronrunner's main.go delegates to, in the same shape as a typical
// production Go service's internal/app package.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cronrunner/internal/config"
	"cronrunner/internal/cronsecret"
	"cronrunner/internal/dashboard"
	"cronrunner/internal/engine"
	"cronrunner/internal/eventbus"
	"cronrunner/internal/health"
	"cronrunner/internal/logging"
	"cronrunner/internal/registry"
	"cronrunner/internal/worker"
)

// App bundles every collaborator a running cronrunner process needs.
// Embedding callers that only want the scheduling core can skip New
// and construct registry/eventbus/engine/worker directly instead.
type App struct {
	cfgMgr *config.Manager

	// cfgMu guards cfg, which Stop reads and the config-update
	// goroutine started by Start replaces on every hot reload.
	cfgMu sync.RWMutex
	cfg   *config.Config

	logSvc *logging.Service
	log    logging.Logger

	reg     *registry.Registry
	bus     *eventbus.Bus
	eng     *engine.Engine
	worker  *worker.Worker
	secrets *cronsecret.Checker

	health    *health.Server
	healthLog logging.Logger
	dashboard *dashboard.Server
	dashSrv   *http.Server
	dashLn    net.Listener
}

// New loads cfgPath, builds every collaborator, and installs the config
// validator. It does not start anything; Start begins the config watch
// that feeds hot reloads into the logging service.
func New(cfgPath string) (*App, error) {
	cfgMgr := config.New(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logging.New(logging.Config{Level: cfg.Logging.Level, Console: cfg.Logging.Console})
	log = log.With(logging.String("component", "app"))

	cfgMgr.SetLogger(log.With(logging.String("component", "config")))
	cfgMgr.SetValidator(validateConfig)

	reg := registry.New()
	bus := eventbus.New()
	eng := engine.New(bus)
	w := worker.New(reg, eng)

	a := &App{
		cfgMgr:  cfgMgr,
		cfg:     cfg,
		logSvc:  logSvc,
		log:     log,
		reg:     reg,
		bus:     bus,
		eng:     eng,
		worker:  w,
		secrets: cronsecret.New(),
	}

	a.healthLog = log.With(logging.String("component", "health"))
	if cfg.Health.Enabled {
		a.health = health.New(cfg.Health.Addr, reg, a.healthLog)
	}
	if cfg.Dashboard.Enabled {
		a.dashboard = dashboard.New(reg, w, bus, log.With(logging.String("component", "dashboard")))
	}

	return a, nil
}

func (a *App) getCfg() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) setCfg(cfg *config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

func validateConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.DefaultTimeout != "" {
		if _, err := time.ParseDuration(cfg.DefaultTimeout); err != nil {
			return fmt.Errorf("default_timeout: %w", err)
		}
	}
	if cfg.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(cfg.ShutdownTimeout); err != nil {
			return fmt.Errorf("shutdown_timeout: %w", err)
		}
	}
	if cfg.DefaultRetry != nil {
		if cfg.DefaultRetry.Attempts < 0 {
			return errors.New("default_retry.attempts must be >= 0")
		}
		if cfg.DefaultRetry.Backoff != "" && cfg.DefaultRetry.Backoff != "linear" && cfg.DefaultRetry.Backoff != "exponential" {
			return fmt.Errorf("default_retry.backoff: unknown value %q", cfg.DefaultRetry.Backoff)
		}
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// Registry exposes the job registry for programmatic registration —
// job-file discovery is an external collaborator this repo doesn't own.
func (a *App) Registry() *registry.Registry { return a.reg }

// Worker exposes the scheduler so a caller can Add jobs before Start.
func (a *App) Worker() *worker.Worker { return a.worker }

// Bus exposes the event stream for a caller that wants its own
// listeners in addition to the dashboard's.
func (a *App) Bus() *eventbus.Bus { return a.bus }

// Secrets exposes the CRON_SECRET checker for a caller's own
// externally-triggered routes.
func (a *App) Secrets() *cronsecret.Checker { return a.secrets }

// Logger returns the app-scoped logger.
func (a *App) Logger() logging.Logger { return a.log }

// Start arms the worker's triggers, starts the optional health and
// dashboard servers, and begins watching the config file for changes.
func (a *App) Start(ctx context.Context) error {
	a.worker.Start()

	if a.health != nil {
		if err := a.health.Start(); err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	if a.dashboard != nil {
		if err := a.startDashboard(a.getCfg().Dashboard.Addr); err != nil {
			return fmt.Errorf("start dashboard server: %w", err)
		}
	}

	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch exited", logging.Err(err))
		}
	}()

	updates := a.cfgMgr.Subscribe(1)
	go a.watchConfigUpdates(ctx, updates)

	return nil
}

// startDashboard binds a fresh listener at addr and serves the
// dashboard router on it. The caller must hold no conflicting listener
// — stopDashboard first when restarting after an address change.
func (a *App) startDashboard(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: a.dashboard.Router()}
	a.dashLn = ln
	a.dashSrv = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("dashboard server stopped with error", logging.Err(err))
		}
	}()
	a.log.Info("dashboard server started", logging.String("addr", ln.Addr().String()))
	return nil
}

func (a *App) stopDashboard(ctx context.Context) {
	if a.dashSrv == nil {
		return
	}
	if err := a.dashSrv.Shutdown(ctx); err != nil {
		_ = a.dashLn.Close()
	}
	a.dashSrv = nil
	a.dashLn = nil
}

// watchConfigUpdates consumes every config hot reload: it always
// retunes the logger in place, and additionally tears down and
// restarts the dashboard and/or health servers when the reload changed
// the section that owns their listener — see ConfigChange's doc for
// why those two sections can't be retuned in place the way logging can.
func (a *App) watchConfigUpdates(ctx context.Context, updates chan *config.Config) {
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			prev := a.getCfg()
			a.setCfg(cfg)
			a.logSvc.Apply(logging.Config{Level: cfg.Logging.Level, Console: cfg.Logging.Console})

			change := config.SummarizeConfigChange(prev, cfg)
			if change.DashboardRestart && a.dashboard != nil {
				a.stopDashboard(ctx)
				if cfg.Dashboard.Enabled {
					if err := a.startDashboard(cfg.Dashboard.Addr); err != nil {
						a.log.Error("dashboard restart failed", logging.Err(err))
					}
				}
			}
			if change.HealthRestart && a.health != nil {
				if err := a.health.Stop(ctx); err != nil {
					a.log.Warn("health server stop error", logging.Err(err))
				}
				if cfg.Health.Enabled {
					// addr may have moved, so this is a fresh Server
					// bound to the new one rather than a.health.Start
					// reusing the one it was constructed with.
					a.health = health.New(cfg.Health.Addr, a.reg, a.healthLog)
					if err := a.health.Start(); err != nil {
						a.log.Error("health restart failed", logging.Err(err))
					}
				}
			}
		}
	}
}

// Stop drains in-flight runs (bounded by cfg.ShutdownTimeout), then
// stops the dashboard and health servers.
func (a *App) Stop(ctx context.Context) error {
	timeout := 30 * time.Second
	if cfg := a.getCfg(); cfg != nil && cfg.ShutdownTimeout != "" {
		if d, err := time.ParseDuration(cfg.ShutdownTimeout); err == nil {
			timeout = d
		}
	}

	report := a.worker.Shutdown(timeout)
	a.log.Info("worker shutdown complete",
		logging.Int("completed", len(report.Completed)),
		logging.Int("interrupted", len(report.Interrupted)))

	a.stopDashboard(ctx)
	if a.health != nil {
		if err := a.health.Stop(ctx); err != nil {
			a.log.Warn("health server stop error", logging.Err(err))
		}
	}
	return nil
}
