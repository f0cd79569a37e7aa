package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-ir-query/internal/config"
	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/dirty"
	"github.com/l3aro/go-ir-query/pkg/ir"
)

// Component statuses.
const (
	StatusReady   = "ready"
	StatusMissing = "missing" // not created yet; the next scan creates it
	StatusError   = "error"
)

// ComponentStatus represents the health of one piece of local state.
type ComponentStatus struct {
	Name    string
	Path    string
	Status  string
	Entries int
	Error   string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Config         ComponentStatus
	CacheDir       ComponentStatus
	Snapshots      ComponentStatus
	Tracker        ComponentStatus
}

// Components lists the checked components in display order.
func (r *HealthCheckResult) Components() []ComponentStatus {
	return []ComponentStatus{r.Config, r.CacheDir, r.Snapshots, r.Tracker}
}

// Healthy reports whether no component is in error.
func (r *HealthCheckResult) Healthy() bool {
	for _, c := range r.Components() {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Config = checkConfig(cfg, effectivePath)
	result.CacheDir = checkCacheDir(cfg.CacheDir)
	result.Snapshots = checkSnapshots(cfg)
	result.Tracker = checkTracker(cfg)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".irq")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkConfig(cfg *config.Config, path string) ComponentStatus {
	status := ComponentStatus{Name: "config", Path: path, Status: StatusReady}
	if err := cfg.Validate(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
	}
	return status
}

// checkCacheDir verifies the cache directory exists and accepts writes.
func checkCacheDir(dir string) ComponentStatus {
	status := ComponentStatus{Name: "cache directory", Path: dir}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		status.Status = StatusMissing
		return status
	case err != nil:
		status.Status = StatusError
		status.Error = err.Error()
		return status
	case !info.IsDir():
		status.Status = StatusError
		status.Error = "not a directory"
		return status
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		status.Status = StatusError
		status.Error = fmt.Sprintf("not writable: %v", err)
		return status
	}
	probe.Close()
	os.Remove(probe.Name())

	status.Status = StatusReady
	return status
}

func checkSnapshots(cfg *config.Config) ComponentStatus {
	path := cfg.CachePath()
	status := ComponentStatus{Name: "snapshot cache", Path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		status.Status = StatusMissing
		return status
	}

	c := cache.New(cache.Options[*ir.Snapshot]{})
	if err := cache.LoadFromFile(c, path); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Entries = c.Len()
	return status
}

func checkTracker(cfg *config.Config) ComponentStatus {
	tracker := dirty.New(dirty.WithCacheDir(cfg.CacheDir))
	status := ComponentStatus{Name: "edit tracker", Path: tracker.CachePath()}
	if _, err := os.Stat(tracker.CachePath()); os.IsNotExist(err) {
		status.Status = StatusMissing
		return status
	}

	if err := tracker.Load(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Entries = tracker.TotalCount()
	return status
}
