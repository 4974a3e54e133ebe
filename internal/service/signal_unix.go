//go:build unix

package service

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so wrapper
// commands and the servers they spawn are signalled together.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func kill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// killGroup kills whatever is left of p's process group after p itself
// has been reaped. An empty group is not an error.
func killGroup(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return p.Signal(sig)
	}
	return err
}
