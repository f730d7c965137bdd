package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatch runs Watch in the background and returns a channel of applied
// configs and a channel closed when Watch returns.
func startWatch(t *testing.T, ctx context.Context, path string) (<-chan *Config, <-chan struct{}) {
	t.Helper()

	applied := make(chan *Config, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, path, func(cfg *Config) { applied <- cfg }); err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	}()

	// Give the watcher a moment to attach before the test mutates files.
	time.Sleep(100 * time.Millisecond)
	return applied, done
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatch_AppliesOnChange(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeConfig(t, cfgPath, "server:\n  port: 9001\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied, done := startWatch(t, ctx, cfgPath)

	writeConfig(t, cfgPath, "server:\n  port: 9002\n")

	select {
	case cfg := <-applied:
		if cfg.Server.Port != 9002 {
			t.Errorf("applied Server.Port = %d, want 9002", cfg.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change was never applied")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeConfig(t, cfgPath, "server:\n  port: 9001\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied, _ := startWatch(t, ctx, cfgPath)

	// The watch sits on the parent directory, so sibling churn must not
	// trigger a reload.
	writeConfig(t, filepath.Join(dir, "notes.txt"), "unrelated")

	select {
	case cfg := <-applied:
		t.Fatalf("unrelated file triggered a reload: %+v", cfg.Server)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatch_RecoversFromBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeConfig(t, cfgPath, "server:\n  port: 9001\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied, _ := startWatch(t, ctx, cfgPath)

	// A broken save logs and keeps the old config; the next good save
	// still applies.
	writeConfig(t, cfgPath, ":::not valid yaml")
	time.Sleep(reloadDebounce + 200*time.Millisecond)
	select {
	case cfg := <-applied:
		t.Fatalf("invalid YAML was applied: %+v", cfg.Server)
	default:
	}

	writeConfig(t, cfgPath, "server:\n  port: 9003\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-applied:
			if cfg.Server.Port == 9003 {
				return
			}
		case <-deadline:
			t.Fatal("watcher never recovered after an invalid config")
		}
	}
}

func TestWatch_RenameReplaceApplies(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeConfig(t, cfgPath, "server:\n  port: 9001\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied, _ := startWatch(t, ctx, cfgPath)

	// Editors save via temp file + rename, replacing the inode.
	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeConfig(t, tmp, "server:\n  port: 9004\n")
	if err := os.Rename(tmp, cfgPath); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-applied:
			if cfg.Server.Port == 9004 {
				return
			}
		case <-deadline:
			t.Fatal("rename-style save was never applied")
		}
	}
}
