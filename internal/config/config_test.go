package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	w, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := w.Current()
	if snap.Engine.BatchSize != 10 {
		t.Fatalf("expected default batch_size 10, got %d", snap.Engine.BatchSize)
	}
	if snap.Engine.TickInterval != 5000*time.Millisecond {
		t.Fatalf("expected default tick_interval_ms 5000, got %s", snap.Engine.TickInterval)
	}
	if snap.SweepAgeDays != 7 {
		t.Fatalf("expected default sweep_age_days 7, got %d", snap.SweepAgeDays)
	}
}

func TestLoadReadsFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "batch_size: 25\nmax_retries: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := w.Current()
	if snap.Engine.BatchSize != 25 {
		t.Fatalf("expected batch_size 25 from file, got %d", snap.Engine.BatchSize)
	}
	if snap.Engine.MaxRetries != 5 {
		t.Fatalf("expected max_retries 5 from file, got %d", snap.Engine.MaxRetries)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	w, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load should tolerate a missing file: %v", err)
	}
	if w.Current().Engine.BatchSize != 10 {
		t.Fatalf("expected default batch_size when file is absent")
	}
}
