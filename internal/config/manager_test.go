package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "runner.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `{"logging":{"level":"debug"}}`)
	m := New(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != "30s" {
		t.Fatalf("ShutdownTimeout default = %q", cfg.ShutdownTimeout)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `{"bogus_field":true}`)
	m := New(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runner.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n  console: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := New(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.Console {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadCommitGet(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `{}`)
	m := New(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() == nil {
		t.Fatal("Get returned nil after Load")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	m := New("/nonexistent")
	ch := m.Subscribe(1)
	m.publish(&Config{})
	select {
	case <-ch:
	default:
		t.Fatal("expected a publish to reach the subscriber")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestWatchPicksUpChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `{"logging":{"level":"info"}}`)
	m := New(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("republished cfg = %+v", cfg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not republish the change within 3s")
	}
}
