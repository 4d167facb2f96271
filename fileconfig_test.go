package jaidee

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfig(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "jaidee.yaml")
	data := `
model: claude-sonnet-4-5-20250929
summary_model: claude-3-5-haiku-20241022
system_prompt: "คุณคือใจดี"
redis_url: "redis://:${TEST_REDIS_PASSWORD}@localhost:6379/0"
database_url: "postgres://localhost:5432/jaidee"
hard_limit: 80000
compaction_trigger: 0.85
keep_recent_pairs: 25
lock_ttl: 45s
session_timeout: 168h
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if cfg.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.RedisURL != "redis://:s3cret@localhost:6379/0" {
		t.Errorf("RedisURL = %q, env not expanded", cfg.RedisURL)
	}
	if cfg.LockTTL != 45*time.Second {
		t.Errorf("LockTTL = %v", cfg.LockTTL)
	}
	if cfg.SessionTimeout != 168*time.Hour {
		t.Errorf("SessionTimeout = %v", cfg.SessionTimeout)
	}

	opts := cfg.Options()
	if len(opts) == 0 {
		t.Fatal("Options() returned none")
	}
	ic := newInternalConfig(Config{Oracle: nil, Model: cfg.Model, SystemPrompt: cfg.SystemPrompt})
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			t.Fatalf("applying option: %v", err)
		}
	}
	if ic.compactionConfig.HardLimit != 80000 {
		t.Errorf("HardLimit = %d, want 80000", ic.compactionConfig.HardLimit)
	}
	if ic.compactionConfig.Trigger != 0.85 {
		t.Errorf("Trigger = %v, want 0.85", ic.compactionConfig.Trigger)
	}
	if ic.compactionConfig.KeepRecentPairs != 25 {
		t.Errorf("KeepRecentPairs = %d, want 25", ic.compactionConfig.KeepRecentPairs)
	}
	if ic.lockTTL != 45*time.Second {
		t.Errorf("lockTTL = %v", ic.lockTTL)
	}
	if ic.sessionConfig.SessionTimeout != 168*time.Hour {
		t.Errorf("sessionConfig.SessionTimeout = %v", ic.sessionConfig.SessionTimeout)
	}
	if ic.summaryModel != "claude-3-5-haiku-20241022" {
		t.Errorf("summaryModel = %q", ic.summaryModel)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := LoadFileConfig("/nonexistent/jaidee.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileConfigOptionsEmpty(t *testing.T) {
	var cfg FileConfig
	if opts := cfg.Options(); len(opts) != 0 {
		t.Errorf("zero config produced %d options", len(opts))
	}
}
