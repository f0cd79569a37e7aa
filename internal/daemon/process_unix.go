//go:build !windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// processAlive sends signal 0, which only checks that pid exists.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// detach starts cmd in its own session so it outlives the terminal.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
