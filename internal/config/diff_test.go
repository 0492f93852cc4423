package config

import "testing"

func TestSummarizeConfigChangeNoneWhenEqual(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	change := SummarizeConfigChange(cfg, cfg)
	if len(change.Sections) != 0 {
		t.Fatalf("sections = %v, want none", change.Sections)
	}
	if change.DashboardRestart || change.HealthRestart {
		t.Fatalf("change = %+v, want no restarts", change)
	}
}

func TestSummarizeConfigChangeFlagsHealthAddr(t *testing.T) {
	old := &Config{Health: HealthConfig{Enabled: true, Addr: ":8080"}}
	next := &Config{Health: HealthConfig{Enabled: true, Addr: ":9090"}}
	change := SummarizeConfigChange(old, next)
	if !change.HealthRestart {
		t.Fatal("expected HealthRestart when addr changes")
	}
	if change.DashboardRestart {
		t.Fatal("dashboard section untouched, expected no restart")
	}
	found := false
	for _, s := range change.Sections {
		if s == "health" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sections = %v, want \"health\"", change.Sections)
	}
}

func TestSummarizeConfigChangeLoggingNeverRestarts(t *testing.T) {
	old := &Config{Logging: LoggingConfig{Level: "info"}}
	next := &Config{Logging: LoggingConfig{Level: "debug"}}
	change := SummarizeConfigChange(old, next)
	if change.DashboardRestart || change.HealthRestart {
		t.Fatalf("logging-only change should never set a restart flag, got %+v", change)
	}
}

func TestSummarizeConfigChangeNilOldTreatsZeroAsBaseline(t *testing.T) {
	next := &Config{HistorySize: 100}
	change := SummarizeConfigChange(nil, next)
	found := false
	for _, s := range change.Sections {
		if s == "history_size" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sections = %v, want \"history_size\"", change.Sections)
	}
}
