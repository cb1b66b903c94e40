package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, logLevel string) {
	t.Helper()
	data := "server:\n  log_level: " + logLevel + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	w, err := NewWatcher(path, func(old, new *Config) {})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("LogLevel = %q, want info", got)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	var fired atomic.Bool
	var gotNew atomic.Value
	w, err := NewWatcher(path, func(old, new *Config) {
		gotNew.Store(new.Server.LogLevel)
		fired.Store(true)
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfig(t, path, "debug")

	deadline := time.After(3 * time.Second)
	for !fired.Load() {
		select {
		case <-deadline:
			t.Fatal("change not detected within 3s")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if lvl := gotNew.Load().(LogLevel); lvl != LogDebug {
		t.Errorf("callback new log level = %q, want debug", lvl)
	}
	if got := w.Current().Server.LogLevel; got != LogDebug {
		t.Errorf("Current() log level = %q, want debug", got)
	}
}

func TestWatcher_InvalidUpdateKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	var fired atomic.Bool
	w, err := NewWatcher(path, func(old, new *Config) { fired.Store(true) },
		WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfig(t, path, "not-a-level")
	time.Sleep(100 * time.Millisecond)

	if fired.Load() {
		t.Error("callback fired for an invalid config")
	}
	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("Current() log level = %q, invalid update must not replace it", got)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
