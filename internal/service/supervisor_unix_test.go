//go:build unix

package service

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// alive reports whether pid names a process that has not exited. Zombies
// count as exited.
func alive(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data))
	return len(fields) > 2 && fields[2] != "Z"
}

func TestSupervisor_StopKillsGroupLeftovers(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	s := newTestSupervisor(t)

	// The wrapper exits on SIGTERM; its child ignores it.
	cfg := ProcessConfig{Command: `sh -c "(trap '' TERM; exec sleep 30) & echo child=$!; wait"`, Port: freePort(t)}
	if _, err := s.Start("p", "wrapper", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	entry := waitForLog(t, s, "p:wrapper", "child=")
	child, err := strconv.Atoi(strings.TrimPrefix(entry.Message, "child="))
	if err != nil {
		t.Fatalf("parse child pid from %q: %v", entry.Message, err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := s.Stop("p:wrapper"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForStatus(t, s, "p:wrapper", StatusStopped)

	deadline := time.Now().Add(3 * time.Second)
	for alive(child) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if alive(child) {
		t.Errorf("child %d survived the stop", child)
	}
}
