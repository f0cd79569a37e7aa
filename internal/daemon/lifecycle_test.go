package daemon

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// isolate points the daemon directory and socket at fresh temporary paths.
func isolate(t *testing.T) (dir, socket string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("IRQ_DAEMON_DIR", dir)

	// Unix socket paths are limited to about 100 bytes, so avoid t.TempDir
	sockDir, err := os.MkdirTemp("", "irq")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })
	socket = filepath.Join(sockDir, "d.sock")
	t.Setenv("IRQ_SOCKET_PATH", socket)
	return dir, socket
}

func TestDaemonDir(t *testing.T) {
	t.Setenv("IRQ_DAEMON_DIR", "")
	cwd, _ := os.Getwd()
	if got, want := DaemonDir(), filepath.Join(cwd, DefaultDir); got != want {
		t.Errorf("DaemonDir() = %q, want %q", got, want)
	}

	t.Setenv("IRQ_DAEMON_DIR", "/tmp/irq-test-dir")
	if got := DaemonDir(); got != "/tmp/irq-test-dir" {
		t.Errorf("DaemonDir() = %q, want env value", got)
	}
	if got, want := PIDFile(), filepath.Join("/tmp/irq-test-dir", PIDFileName); got != want {
		t.Errorf("PIDFile() = %q, want %q", got, want)
	}
	if got, want := StatusFile(), filepath.Join("/tmp/irq-test-dir", StatusFileName); got != want {
		t.Errorf("StatusFile() = %q, want %q", got, want)
	}
}

func TestPIDFileLifecycle(t *testing.T) {
	dir, _ := isolate(t)
	nested := filepath.Join(dir, "nested", "deeper")
	t.Setenv("IRQ_DAEMON_DIR", nested)

	if PIDExists() {
		t.Fatal("PIDExists() = true before writing")
	}
	if _, err := ReadPID(); err == nil {
		t.Error("ReadPID() without a file should fail")
	}

	if err := WritePID(12345); err != nil {
		t.Fatalf("WritePID() error = %v", err)
	}
	if !PIDExists() {
		t.Error("PIDExists() = false after writing")
	}
	pid, err := ReadPID()
	if err != nil {
		t.Fatalf("ReadPID() error = %v", err)
	}
	if pid != 12345 {
		t.Errorf("ReadPID() = %d, want 12345", pid)
	}

	if err := RemovePID(); err != nil {
		t.Fatalf("RemovePID() error = %v", err)
	}
	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID() on a missing file error = %v", err)
	}
	if PIDExists() {
		t.Error("PIDExists() = true after removal")
	}
}

func TestReadPIDInvalidContent(t *testing.T) {
	dir, _ := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, PIDFileName), []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(); err == nil {
		t.Error("ReadPID() should reject non-numeric content")
	}
}

func TestStatusFileLifecycle(t *testing.T) {
	dir, _ := isolate(t)

	startedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := &DaemonStatus{Running: true, Ready: true, PID: 42, StartedAt: startedAt, Version: "1.0.0", Documents: 3}
	if err := WriteStatus(want); err != nil {
		t.Fatalf("WriteStatus() error = %v", err)
	}

	got, err := ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if got.PID != 42 || !got.Ready || got.Version != "1.0.0" || got.Documents != 3 || !got.StartedAt.Equal(startedAt) {
		t.Errorf("ReadStatus() = %+v, want %+v", got, want)
	}

	if err := RemoveStatus(); err != nil {
		t.Fatalf("RemoveStatus() error = %v", err)
	}
	if _, err := ReadStatus(); err == nil {
		t.Error("ReadStatus() after removal should fail")
	}

	if err := os.WriteFile(filepath.Join(dir, StatusFileName), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadStatus(); err == nil {
		t.Error("ReadStatus() should reject invalid JSON")
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("current process should be running")
	}
	if IsProcessRunning(0) || IsProcessRunning(-1) {
		t.Error("non-positive PIDs are never running")
	}
	if runtime.GOOS != "windows" && IsProcessRunning(999999) {
		t.Error("PID 999999 should not be running")
	}
}

func TestSocketPathAndEndpoint(t *testing.T) {
	t.Setenv("IRQ_SOCKET_PATH", "")
	if got, want := GetSocketPath(), filepath.Join(os.TempDir(), SocketFileName); got != want {
		t.Errorf("GetSocketPath() = %q, want %q", got, want)
	}
	t.Setenv("IRQ_SOCKET_PATH", "/run/custom.sock")
	if got := GetSocketPath(); got != "/run/custom.sock" {
		t.Errorf("GetSocketPath() = %q, want env value", got)
	}

	t.Setenv("IRQ_TCP_PORT", "")
	if got := GetTCPPort(); got != DefaultTCPPort {
		t.Errorf("GetTCPPort() = %q, want %q", got, DefaultTCPPort)
	}

	if runtime.GOOS == "windows" {
		t.Skip("Unix sockets only")
	}
	if network, address := Endpoint(""); network != "unix" || address != "/run/custom.sock" {
		t.Errorf("Endpoint(\"\") = %s %s", network, address)
	}
	if _, address := Endpoint("/tmp/other.sock"); address != "/tmp/other.sock" {
		t.Errorf("Endpoint() ignored explicit path, got %s", address)
	}
}

func TestCheckStatus(t *testing.T) {
	t.Run("no PID file", func(t *testing.T) {
		isolate(t)
		status, err := CheckStatus()
		if err != nil {
			t.Fatalf("CheckStatus() error = %v", err)
		}
		if status.Running || status.Ready {
			t.Errorf("CheckStatus() = %+v, want stopped", status)
		}
	})

	t.Run("stale PID file is cleaned up", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("PID reuse semantics differ")
		}
		isolate(t)
		if err := WritePID(999999); err != nil {
			t.Fatal(err)
		}
		if err := WriteStatus(&DaemonStatus{Running: true, PID: 999999}); err != nil {
			t.Fatal(err)
		}

		status, err := CheckStatus()
		if err != nil {
			t.Fatalf("CheckStatus() error = %v", err)
		}
		if status.Running {
			t.Error("stale PID should not count as running")
		}
		if PIDExists() {
			t.Error("stale PID file should be removed")
		}
		if _, err := ReadStatus(); err == nil {
			t.Error("stale status file should be removed")
		}
	})

	t.Run("process alive but not listening", func(t *testing.T) {
		isolate(t)
		if err := WritePID(os.Getpid()); err != nil {
			t.Fatal(err)
		}

		status, err := CheckStatus()
		if err != nil {
			t.Fatalf("CheckStatus() error = %v", err)
		}
		if !status.Running || status.Ready {
			t.Errorf("CheckStatus() = %+v, want running but not ready", status)
		}
		if !strings.Contains(status.Error, "not responding") {
			t.Errorf("Error = %q, want not responding", status.Error)
		}
		if IsRunning() {
			t.Error("IsRunning() = true without a listener")
		}
	})
}

func TestGetStatusStopped(t *testing.T) {
	isolate(t)
	result, err := GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if result.Status != "stopped" || result.Running {
		t.Errorf("GetStatus() = %+v, want stopped", result)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	isolate(t)
	result, err := Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "no PID file") {
		t.Errorf("Stop() = %+v, want no PID file", result)
	}

	if runtime.GOOS == "windows" {
		return
	}
	if err := WritePID(999999); err != nil {
		t.Fatal(err)
	}
	result, err = Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "process not found") {
		t.Errorf("Stop() = %+v, want process not found", result)
	}
	if PIDExists() {
		t.Error("stale PID file should be removed")
	}
}

func TestWaitForReady(t *testing.T) {
	isolate(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := waitForReady(ctx)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("waitForReady() = %v, want timeout", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := waitForReady(ctx); err != context.Canceled {
		t.Errorf("waitForReady() = %v, want context.Canceled", err)
	}
}

func TestWaitForShutdown(t *testing.T) {
	if runtime.GOOS != "windows" && !waitForShutdown(999999, 100*time.Millisecond) {
		t.Error("waitForShutdown() should return at once for a missing process")
	}
	start := time.Now()
	if waitForShutdown(os.Getpid(), 100*time.Millisecond) {
		t.Error("waitForShutdown() = true for the current process")
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("waitForShutdown() returned before the timeout")
	}
}

func TestFindDaemonBinary(t *testing.T) {
	t.Setenv("IRQ_DAEMON_PATH", "/opt/irq/bin/irqd")
	if got := findDaemonBinary(); got != "/opt/irq/bin/irqd" {
		t.Errorf("findDaemonBinary() = %q, want env value", got)
	}

	t.Setenv("IRQ_DAEMON_PATH", "")
	if got := findDaemonBinary(); filepath.Base(got) != DaemonBinary {
		t.Errorf("findDaemonBinary() = %q, want a path ending in %s", got, DaemonBinary)
	}
}

func TestStartMissingBinary(t *testing.T) {
	isolate(t)
	_, err := Start(context.Background(), &StartOptions{DaemonPath: filepath.Join(t.TempDir(), "nope")})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Start() error = %v, want binary not found", err)
	}
	if PIDExists() {
		t.Error("no PID file should be written when start fails")
	}
}
