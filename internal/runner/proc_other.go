//go:build !linux

package runner

import "os/exec"

func setProcGroup(cmd *exec.Cmd) {}

func killProcGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func applyRAMCap(pid int, limit int64) error {
	// No portable per-child rlimit outside linux
	return nil
}
