//go:build windows

package service

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGTERM for console children; both levels kill.
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}

// killGroup is a no-op; children are not grouped on Windows.
func killGroup(p *os.Process) error {
	return nil
}
