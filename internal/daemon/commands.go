package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DaemonBinary is the executable name of the daemon.
const DaemonBinary = "irqd"

// StartOptions contains options for starting the daemon
type StartOptions struct {
	// DaemonPath is the path to the daemon executable
	DaemonPath string
	// SocketPath overrides the Unix socket path
	SocketPath string
	// ConfigPath is passed to the daemon as --config
	ConfigPath string
	// Verbose enables debug logging in the daemon
	Verbose bool
	// WaitForReady blocks until the daemon answers a status ping
	WaitForReady bool
	// ReadyTimeout bounds WaitForReady
	ReadyTimeout time.Duration
	// Background detaches the daemon from the terminal
	Background bool
}

// StartResult contains the result of a start operation
type StartResult struct {
	Success   bool      `json:"success"`
	PID       int       `json:"pid,omitempty"`
	Ready     bool      `json:"ready"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Start launches the daemon binary and records its PID.
func Start(ctx context.Context, opts *StartOptions) (*StartResult, error) {
	if status, err := CheckStatus(); err == nil && status.Running && status.Ready {
		return &StartResult{PID: status.PID, Error: "daemon already running"}, nil
	}

	daemonPath := opts.DaemonPath
	if daemonPath == "" {
		daemonPath = findDaemonBinary()
	}
	resolved, err := exec.LookPath(daemonPath)
	if err != nil {
		return nil, fmt.Errorf("daemon binary not found: %w", err)
	}

	var args []string
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}

	cmd := exec.Command(resolved, args...)
	cmd.Env = os.Environ()
	if opts.SocketPath != "" {
		cmd.Env = append(cmd.Env, "IRQ_SOCKET_PATH="+opts.SocketPath)
	}
	if opts.Background {
		detach(cmd)
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting daemon: %w", err)
	}

	pid := cmd.Process.Pid
	startedAt := time.Now()

	if err := WritePID(pid); err != nil {
		cmd.Process.Kill()
		return nil, err
	}
	if err := WriteStatus(&DaemonStatus{Running: true, PID: pid, StartedAt: startedAt}); err != nil {
		cmd.Process.Kill()
		RemovePID()
		return nil, err
	}
	// the child is not waited on; releasing lets it run past this process
	cmd.Process.Release()

	result := &StartResult{Success: true, PID: pid, StartedAt: startedAt}
	if !opts.WaitForReady {
		return result, nil
	}

	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = ReadyTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := waitForReady(waitCtx); err != nil {
		if p, ferr := os.FindProcess(pid); ferr == nil {
			p.Kill()
		}
		RemovePID()
		RemoveStatus()
		return &StartResult{
			PID:       pid,
			StartedAt: startedAt,
			Error:     fmt.Sprintf("daemon not ready: %v", err),
		}, nil
	}

	result.Ready = true
	WriteStatus(&DaemonStatus{Running: true, Ready: true, PID: pid, StartedAt: startedAt})
	return result, nil
}

// findDaemonBinary prefers IRQ_DAEMON_PATH, then irqd next to the running
// executable, then whatever PATH resolves.
func findDaemonBinary() string {
	if path := os.Getenv("IRQ_DAEMON_PATH"); path != "" {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), DaemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return DaemonBinary
}

func waitForReady(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if status, err := CheckStatus(); err == nil && status.Running && status.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.New("timeout waiting for daemon to be ready")
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StopResult contains the result of a stop operation
type StopResult struct {
	Success   bool      `json:"success"`
	PID       int       `json:"pid,omitempty"`
	StoppedAt time.Time `json:"stopped_at"`
	Forced    bool      `json:"forced,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Stop asks the daemon to shut down and kills it if it does not exit within
// ShutdownTimeout.
func Stop() (*StopResult, error) {
	if !PIDExists() {
		return &StopResult{Error: "daemon not running (no PID file)"}, nil
	}

	pid, err := ReadPID()
	if err != nil {
		return &StopResult{Error: fmt.Sprintf("failed to read PID: %v", err)}, nil
	}

	if !IsProcessRunning(pid) {
		RemovePID()
		RemoveStatus()
		return &StopResult{Error: "daemon not running (process not found)"}, nil
	}

	result := &StopResult{Success: true, PID: pid}
	if _, err := Call("", dialTimeout, Command{Type: CmdStop, ID: "stop"}); err != nil || !waitForShutdown(pid, ShutdownTimeout) {
		process, err := os.FindProcess(pid)
		if err == nil {
			if err := process.Kill(); err != nil && IsProcessRunning(pid) {
				return &StopResult{PID: pid, Error: fmt.Sprintf("failed to kill process: %v", err)}, nil
			}
		}
		waitForShutdown(pid, 2*time.Second)
		result.Forced = true
	}

	RemovePID()
	RemoveStatus()
	result.StoppedAt = time.Now()
	return result, nil
}

func waitForShutdown(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// StatusResult is the user-facing daemon status.
type StatusResult struct {
	Status    string    `json:"status"`
	Running   bool      `json:"running"`
	Ready     bool      `json:"ready"`
	PID       int       `json:"pid,omitempty"`
	Version   string    `json:"version,omitempty"`
	Documents int       `json:"documents"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// GetStatus summarises CheckStatus as stopped, starting or running.
func GetStatus() (*StatusResult, error) {
	status, err := CheckStatus()
	if err != nil {
		return &StatusResult{Status: "unknown", Error: err.Error()}, nil
	}

	result := &StatusResult{
		Running:   status.Running,
		Ready:     status.Ready,
		PID:       status.PID,
		Version:   status.Version,
		Documents: status.Documents,
		StartedAt: status.StartedAt,
		Error:     status.Error,
	}
	switch {
	case !status.Running:
		result.Status = "stopped"
	case !status.Ready:
		result.Status = "starting"
	default:
		result.Status = "running"
	}
	return result, nil
}
