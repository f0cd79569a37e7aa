package healthcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
)

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "", "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckFreshWorkspace(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")

	result, err := Check(cfg, "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.Config.Status != StatusReady {
		t.Errorf("Config.Status = %q, want %q", result.Config.Status, StatusReady)
	}
	for _, c := range []ComponentStatus{result.CacheDir, result.Snapshots, result.Tracker} {
		if c.Status != StatusMissing {
			t.Errorf("%s status = %q, want %q", c.Name, c.Status, StatusMissing)
		}
	}
	if !result.Healthy() {
		t.Error("a fresh workspace should be healthy")
	}
}

func TestCheckPopulatedCache(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()

	c := cache.New(cache.Options[*ir.Snapshot]{})
	c.Set("a", &ir.Snapshot{Entry: "main"})
	c.Set("b", &ir.Snapshot{Entry: "other"})
	if err := cache.PersistToFile(c, cfg.CachePath()); err != nil {
		t.Fatal(err)
	}

	tracker := dirty.New(dirty.WithCacheDir(cfg.CacheDir))
	tracker.Clean("graph.ir", "text")
	if err := tracker.Save(); err != nil {
		t.Fatal(err)
	}

	result, err := Check(cfg, "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.CacheDir.Status != StatusReady {
		t.Errorf("CacheDir.Status = %q (%s)", result.CacheDir.Status, result.CacheDir.Error)
	}
	if result.Snapshots.Status != StatusReady || result.Snapshots.Entries != 2 {
		t.Errorf("Snapshots = %+v, want ready with 2 entries", result.Snapshots)
	}
	if result.Tracker.Status != StatusReady || result.Tracker.Entries != 1 {
		t.Errorf("Tracker = %+v, want ready with 1 entry", result.Tracker)
	}

	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".probe-") {
			t.Errorf("write probe %s was left behind", e.Name())
		}
	}
}

func TestCheckReportsErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.Workers = 0

	if err := os.WriteFile(cfg.CachePath(), []byte{0xc1}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.CacheDir, dirty.DefaultCacheFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := Check(cfg, "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	for _, c := range []ComponentStatus{result.Config, result.Snapshots, result.Tracker} {
		if c.Status != StatusError || c.Error == "" {
			t.Errorf("%s = %+v, want an error", c.Name, c)
		}
	}
	if result.Healthy() {
		t.Error("Healthy() = true with failing components")
	}
}

func TestCheckCacheDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	status := checkCacheDir(path)
	if status.Status != StatusError || status.Error != "not a directory" {
		t.Errorf("checkCacheDir() = %+v", status)
	}
}

func TestScopeFromPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	globalPath := ""
	if home != "" {
		globalPath = filepath.Join(home, ".irq", "config.yaml")
	}

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"empty path", "", ""},
		{"global path", globalPath, "global"},
		{"project path", "/project/.irq/config.yaml", "project"},
		{"relative project path", ".irq/config.yaml", "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.path == "" && tt.expected != "" {
				t.Skip("no home directory")
			}
			result := scopeFromPath(tt.path)
			if result != tt.expected {
				t.Errorf("scopeFromPath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}
