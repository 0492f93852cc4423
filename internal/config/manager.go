package config

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"cronrunner/internal/logging"
)

// Manager owns the runner's config file: parsing, the last-committed
// value, and an optional fsnotify watch that republishes to
// subscribers on change.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards the subscriber list and ensures a send is never
	// attempted on a channel Unsubscribe is concurrently closing.
	subsMu sync.Mutex
	subs   []chan *Config

	log       logging.Logger
	validator func(ctx context.Context, cfg *Config) error

	// lastHash avoids republishing when an editor produces multiple
	// write events without a content change.
	lastHash uint64

	// reloadLimiter bounds how often a watch can actually re-parse and
	// commit, independent of the event debounce below it. Some editors
	// save atomically via temp-write + rename + chmod, producing a
	// burst of distinct fsnotify events that each reset the debounce
	// timer; without a floor on reload cadence a pathological burst
	// could keep deferring the reload indefinitely.
	reloadLimiter *rate.Limiter
}

// New returns a Manager reading from path. Call Load (or Parse+Commit)
// before Get returns anything.
func New(path string) *Manager {
	return &Manager{
		path:          path,
		reloadLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// SetLogger installs a logger used for watch diagnostics. A zero
// Logger is a safe no-op.
func (m *Manager) SetLogger(log logging.Logger) { m.log = log }

// SetValidator installs a hook Watch calls before commit/publish.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// Parse reads and decodes the config file without committing it.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if isYAMLPath(m.path) {
		err = decodeYAML(b, &cfg)
	} else {
		err = decodeJSON(b, &cfg)
	}
	if err != nil {
		return nil, err
	}
	cfg.Defaults()
	return &cfg, nil
}

// Commit stores cfg as the current value and updates the dedup hash.
func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Load parses and commits in one step.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

// Get returns the last committed config, or nil before the first Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Subscribe returns a channel that receives every future committed
// config. buffer sizes how many unread updates queue before the oldest
// is dropped in favor of the newest.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Safe to call at most once per
// channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
				if !m.log.IsZero() {
					m.log.Debug("config update dropped (subscriber slow)",
						logging.Int("queue_len", len(ch)),
						logging.Int("queue_cap", cap(ch)))
				}
			}
		}
	}
}

// Watch runs an fsnotify watch on the config file's directory until
// ctx is canceled. A session that ends — the watcher's channels close,
// or it never started — is retried behind an exponential backoff with
// jitter; a healthy session resets the backoff the moment it starts.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for ctx.Err() == nil {
		err := m.watchSession(ctx, dir, file, &backoff, restartBackoffBase)
		if ctx.Err() != nil {
			return nil
		}

		wait := jitteredBackoff(&backoff, rng, restartBackoffMax)
		if !m.log.IsZero() {
			m.log.Warn("config watcher restarting",
				logging.String("dir", dir), logging.Duration("backoff", wait), logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
	return nil
}

// watchSession runs a single fsnotify.Watcher from creation to the
// point its channels close or ctx is canceled. It resets *backoff to
// base as soon as the watcher is successfully attached to dir, since a
// session that gets that far has proven the directory is watchable —
// only the session's own failure, not the *next* attempt, should pay
// the backoff.
func (m *Manager) watchSession(ctx context.Context, dir, file string, backoff *time.Duration, base time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	*backoff = base
	if !m.log.IsZero() {
		m.log.Debug("config watcher started", logging.String("dir", dir), logging.String("file", file))
	}

	reload := m.debouncer(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("event channel closed")
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				reload()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("error channel closed")
			}
			if werr == nil {
				continue
			}
			msg := strings.ToLower(werr.Error())
			if strings.Contains(msg, "overflow") {
				if !m.log.IsZero() {
					m.log.Warn("config watch overflow; forcing reload", logging.Err(werr), logging.String("dir", dir))
				}
				reload()
				continue
			}
			if strings.Contains(msg, "closed") {
				return fmt.Errorf("watcher closed: %w", werr)
			}
			if !m.log.IsZero() {
				m.log.Warn("config watch error", logging.Err(werr), logging.String("dir", dir))
			}
		}
	}
}

// debouncer returns a function that, called repeatedly, coalesces
// bursts of fsnotify events into a single reload 250ms after the last
// call.
func (m *Manager) debouncer(ctx context.Context) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() { m.reload(ctx) })
	}
}

// reload re-parses the config file, validates it, and — if it differs
// from the last committed value — commits and publishes it, logging a
// section-level summary of what changed. reloadLimiter caps how often
// this actually runs even under a sustained burst of filesystem
// events.
func (m *Manager) reload(ctx context.Context) {
	if err := m.reloadLimiter.Wait(ctx); err != nil {
		return
	}

	cfg, err := m.Parse()
	if err != nil {
		if !m.log.IsZero() {
			m.log.Warn("config parse failed", logging.String("path", m.path), logging.Err(err))
		}
		return
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		if !m.log.IsZero() {
			m.log.Debug("config unchanged; skipping publish", logging.String("path", m.path))
		}
		return
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		verr := m.validator(vctx, cfg)
		cancel()
		if verr != nil {
			if !m.log.IsZero() {
				m.log.Warn("config rejected", logging.String("path", m.path), logging.Err(verr))
			}
			return
		}
	}

	old := m.Get()
	m.Commit(cfg)

	change := SummarizeConfigChange(old, cfg)
	if !m.log.IsZero() {
		fields := append([]logging.Field{
			logging.String("path", m.path),
			logging.Any("sections", change.Sections),
		}, change.Fields...)
		m.log.Info("config reloaded", fields...)
	}

	m.publish(cfg)
}

// jitteredBackoff advances *backoff toward max (doubling, capped) and
// returns a wait drawn from the current value plus up to 50% jitter,
// so many processes racing to re-watch the same directory don't retry
// in lockstep.
func jitteredBackoff(backoff *time.Duration, rng *rand.Rand, max time.Duration) time.Duration {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < max {
		*backoff *= 2
		if *backoff > max {
			*backoff = max
		}
	}
	return wait
}
