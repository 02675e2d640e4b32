package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := mgr.Get()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.MaxDiscussionRounds = 4

	data, _ := json.Marshal(cfg)
	if err := mgr.UpdateFromJSON(string(data)); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}

	updated := mgr.Get()
	if updated.MaxDiscussionRounds != 4 {
		t.Fatalf("expected 4 discussion rounds, got %d", updated.MaxDiscussionRounds)
	}
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := mgr.Get()
	cfg.MaxToolsPerPlan = 0
	if err := mgr.Update(cfg); err == nil {
		t.Fatal("expected validation error for zero max_tools_per_plan")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	if err := mgr.Watch(ctx, func(cfg Config) {
		reloaded <- struct{}{}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	cfg.DataDir = filepath.Join(dir, "changed-data")

	if err := writeConfigFile(mgr.Path(), cfg); err != nil {
		t.Fatalf("writeConfigFile: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestDefaultConfigBounds(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxToolsPerPlan != 15 {
		t.Errorf("MaxToolsPerPlan = %d, want 15", cfg.MaxToolsPerPlan)
	}
	if cfg.MaxDiscussionRounds != 2 {
		t.Errorf("MaxDiscussionRounds = %d, want 2", cfg.MaxDiscussionRounds)
	}
	if cfg.MaxPlansInContext != 3 {
		t.Errorf("MaxPlansInContext = %d, want 3", cfg.MaxPlansInContext)
	}
}
