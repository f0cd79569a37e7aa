//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

// processAlive relies on FindProcess opening a handle, which fails once the
// process is gone.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}

func detach(cmd *exec.Cmd) {}
