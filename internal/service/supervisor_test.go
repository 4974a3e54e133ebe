package service

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"devdash/internal/models"
	"devdash/internal/ports"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	base := []Option{
		WithLogger(log.New(io.Discard)),
		WithKillTimeout(500 * time.Millisecond),
		WithRestartDelay(200 * time.Millisecond),
	}
	s := NewSupervisor(append(base, opts...)...)
	t.Cleanup(func() { s.StopAll(2 * time.Second) })
	return s
}

func waitForStatus(t *testing.T, s *Supervisor, id, want string) models.Process {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := s.Get(id); ok && info.Status == want {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	info, _ := s.Get(id)
	t.Fatalf("%s status = %q, want %q", id, info.Status, want)
	return info
}

func waitForLog(t *testing.T, s *Supervisor, id, substr string) models.LogEntry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range s.Logs(id, 0) {
			if strings.Contains(e.Message, substr) {
				return e
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no log entry containing %q for %s: %v", substr, id, messages(s.Logs(id, 0)))
	return models.LogEntry{}
}

func messages(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func indexOf(entries []models.LogEntry, substr string, from int) int {
	for i := from; i < len(entries); i++ {
		if strings.Contains(entries[i].Message, substr) {
			return i
		}
	}
	return -1
}

func TestSupervisor_Start(t *testing.T) {
	s := newTestSupervisor(t)
	port := freePort(t)

	info, err := s.Start("proj1", "web", ProcessConfig{Command: "sleep 30", Port: port})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if info.ID != "proj1:web" {
		t.Errorf("ID = %q", info.ID)
	}
	if info.Status != StatusRunning {
		t.Errorf("Status = %q, want running", info.Status)
	}
	if info.Port != port {
		t.Errorf("Port = %d, want %d", info.Port, port)
	}
	if info.Pid <= 0 || info.RunID == "" || info.StartedAt == nil {
		t.Errorf("incomplete snapshot: %+v", info)
	}
	if info.ExitCode != nil {
		t.Errorf("ExitCode = %d on a running process", *info.ExitCode)
	}

	logs := s.Logs("proj1:web", 0)
	if len(logs) == 0 || !strings.Contains(logs[0].Message, fmt.Sprintf("Started process on port %d", port)) {
		t.Errorf("first entry = %v", messages(logs))
	}
}

func TestSupervisor_StartAlreadyRunning(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ProcessConfig{Command: "sleep 30", Port: freePort(t)}

	if _, err := s.Start("p", "web", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := s.Start("p", "web", cfg)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}

	running := 0
	for _, p := range s.List() {
		if p.ID == "p:web" && p.Status == StatusRunning {
			running++
		}
	}
	if running != 1 {
		t.Errorf("running records for p:web = %d, want 1", running)
	}
}

func TestSupervisor_ConcurrentStartSameKey(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ProcessConfig{Command: "sleep 30", Port: freePort(t)}

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
		running int
		other   []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Start("p", "web", cfg)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started++
			case errors.Is(err, ErrAlreadyRunning):
				running++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if started != 1 || running != attempts-1 || len(other) != 0 {
		t.Errorf("started = %d, already running = %d, other errors = %v", started, running, other)
	}
	if got := s.RunningCount(); got != 1 {
		t.Errorf("RunningCount = %d, want 1", got)
	}
}

func TestSupervisor_StartPortInUse(t *testing.T) {
	s := newTestSupervisor(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, err = s.Start("p", "web", ProcessConfig{Command: "sleep 30", Port: port})
	if !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("err = %v, want ErrPortUnavailable", err)
	}
	if _, ok := s.Get("p:web"); ok {
		t.Error("record created for a failed start")
	}
}

func TestSupervisor_StartPortHeldByRunningProcess(t *testing.T) {
	s := newTestSupervisor(t)
	port := freePort(t)

	// sleep never binds, so only the supervisor's own bookkeeping can
	// catch the conflict.
	if _, err := s.Start("p", "api", ProcessConfig{Command: "sleep 30", Port: port}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := s.Start("p", "web", ProcessConfig{Command: "sleep 30", Port: port})
	if !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("err = %v, want ErrPortUnavailable", err)
	}
}

func TestSupervisor_StartSpawnFailure(t *testing.T) {
	s := newTestSupervisor(t)

	_, err := s.Start("p", "web", ProcessConfig{Command: "/nonexistent/devdash-test-binary", Port: freePort(t)})
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("err = %v, want ErrSpawnFailure", err)
	}
	if _, ok := s.Get("p:web"); ok {
		t.Error("record created for a failed spawn")
	}
	e := waitForLog(t, s, "p:web", "Process error")
	if e.Stream != models.StreamStderr {
		t.Errorf("stream = %q, want stderr", e.Stream)
	}

	_, err = s.Start("p", "web", ProcessConfig{Command: "npm install && npm start", Port: freePort(t)})
	if !errors.Is(err, ErrSpawnFailure) || !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("err = %v, want ErrSpawnFailure wrapping ErrInvalidCommand", err)
	}
}

func TestSupervisor_ExitWithCode(t *testing.T) {
	s := newTestSupervisor(t)

	if _, err := s.Start("p", "job", ProcessConfig{Command: `sh -c "exit 2"`, Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	info := waitForStatus(t, s, "p:job", StatusFailed)
	if info.ExitCode == nil || *info.ExitCode != 2 {
		t.Fatalf("ExitCode = %v, want 2", info.ExitCode)
	}
	e := waitForLog(t, s, "p:job", "exited with code 2")
	if e.Stream != models.StreamStderr {
		t.Errorf("stream = %q, want stderr", e.Stream)
	}
}

func TestSupervisor_CleanExitAndOrdering(t *testing.T) {
	s := newTestSupervisor(t)

	cfg := ProcessConfig{Command: `sh -c "echo one; echo two; echo three"`, Port: freePort(t)}
	if _, err := s.Start("p", "job", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	info := waitForStatus(t, s, "p:job", StatusStopped)
	if info.ExitCode == nil || *info.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", info.ExitCode)
	}
	waitForLog(t, s, "p:job", "exited with code 0")

	got := messages(s.Logs("p:job", 0))
	want := []string{"Started process", "one", "two", "three", "exited with code 0"}
	if len(got) != len(want) {
		t.Fatalf("logs = %q", got)
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			t.Errorf("logs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSupervisor_CapturesStderr(t *testing.T) {
	s := newTestSupervisor(t)

	if _, err := s.Start("p", "job", ProcessConfig{Command: `sh -c "echo oops >&2"`, Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if e := waitForLog(t, s, "p:job", "oops"); e.Stream != models.StreamStderr {
		t.Errorf("stream = %q, want stderr", e.Stream)
	}
}

func TestSupervisor_PortEnvironmentAndArgument(t *testing.T) {
	s := newTestSupervisor(t)
	port := freePort(t)

	cfg := ProcessConfig{
		Command: `sh -c "echo env=$PORT mode=$MODE args=$1,$2" sh`,
		Port:    port,
		PortArg: "--port",
		Env:     map[string]string{"MODE": "dev"},
	}
	if _, err := s.Start("p", "env", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForLog(t, s, "p:env", fmt.Sprintf("env=%d mode=dev args=--port,%d", port, port))
}

func TestSupervisor_WorkingDir(t *testing.T) {
	s := newTestSupervisor(t)
	dir := t.TempDir()

	if _, err := s.Start("p", "pwd", ProcessConfig{Command: "pwd", Port: freePort(t), WorkingDir: dir}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForLog(t, s, "p:pwd", dir)
}

func TestSupervisor_Stop(t *testing.T) {
	s := newTestSupervisor(t)

	if err := s.Stop("p:missing"); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("Stop unknown err = %v, want ErrProcessNotFound", err)
	}

	if _, err := s.Start("p", "web", ProcessConfig{Command: "sleep 30", Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop("p:web"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForLog(t, s, "p:web", "Stopping process")
	waitForStatus(t, s, "p:web", StatusStopped)

	if err := s.Stop("p:web"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop on stopped err = %v, want ErrNotRunning", err)
	}

	// The escalation timer must not fire for a process that exited.
	time.Sleep(700 * time.Millisecond)
	for _, e := range s.Logs("p:web", 0) {
		if strings.Contains(e.Message, "SIGKILL") {
			t.Errorf("unexpected escalation entry: %q", e.Message)
		}
	}
}

func TestSupervisor_StopOnFailedProcess(t *testing.T) {
	s := newTestSupervisor(t)

	if _, err := s.Start("p", "job", ProcessConfig{Command: "false", Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:job", StatusFailed)
	if err := s.Stop("p:job"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestSupervisor_StopEscalatesToKill(t *testing.T) {
	s := newTestSupervisor(t, WithKillTimeout(300*time.Millisecond))

	cfg := ProcessConfig{Command: `sh -c "trap '' TERM; while true; do sleep 0.1; done"`, Port: freePort(t)}
	if _, err := s.Start("p", "stubborn", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Let the shell install its trap.
	time.Sleep(200 * time.Millisecond)

	stopped := time.Now()
	if err := s.Stop("p:stubborn"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForStatus(t, s, "p:stubborn", StatusStopped)

	if elapsed := time.Since(stopped); elapsed < 300*time.Millisecond {
		t.Errorf("exited after %v, before the kill timeout", elapsed)
	}
	waitForLog(t, s, "p:stubborn", "SIGKILL")
}

func TestSupervisor_EscalationSparesNextRun(t *testing.T) {
	s := newTestSupervisor(t, WithKillTimeout(600*time.Millisecond))
	port := freePort(t)

	graceful := ProcessConfig{Command: `sh -c "trap 'sleep 0.2; exit 0' TERM; while true; do sleep 0.1; done"`, Port: port}
	if _, err := s.Start("p", "web", graceful); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if err := s.Stop("p:web"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForStatus(t, s, "p:web", StatusStopped)

	next, err := s.Start("p", "web", ProcessConfig{Command: "sleep 30", Port: port})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	// Outlast the first run's kill timeout.
	time.Sleep(900 * time.Millisecond)

	info, _ := s.Get("p:web")
	if info.Status != StatusRunning || info.Pid != next.Pid {
		t.Errorf("next run = %+v, want running pid %d", info, next.Pid)
	}
	for _, e := range s.Logs("p:web", 0) {
		if strings.Contains(e.Message, "SIGKILL") {
			t.Errorf("unexpected escalation entry: %q", e.Message)
		}
	}
}

func TestSupervisor_Restart(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ProcessConfig{Command: "sleep 30", Port: freePort(t)}

	first, err := s.Start("p", "web", cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	began := time.Now()
	second, err := s.Restart("p:web", cfg)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if elapsed := time.Since(began); elapsed < 200*time.Millisecond {
		t.Errorf("Restart took %v, want at least the settling delay", elapsed)
	}
	if second.Status != StatusRunning {
		t.Errorf("Status = %q, want running", second.Status)
	}
	if second.RunID == first.RunID || second.Pid == first.Pid {
		t.Errorf("restart reused the old generation: %+v", second)
	}

	logs := s.Logs("p:web", 0)
	stopping := indexOf(logs, "Stopping process", 0)
	started := indexOf(logs, "Started process", stopping+1)
	if stopping < 0 || started < 0 {
		t.Fatalf("logs = %q", messages(logs))
	}
	if gap := logs[started].Timestamp.Sub(logs[stopping].Timestamp); gap < 200*time.Millisecond {
		t.Errorf("gap between stopping and started = %v", gap)
	}
}

func TestSupervisor_RestartRequiresRunning(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ProcessConfig{Command: "true", Port: freePort(t)}

	if _, err := s.Restart("p:web", cfg); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("err = %v, want ErrProcessNotFound", err)
	}

	if _, err := s.Start("p", "web", cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:web", StatusStopped)
	if _, err := s.Restart("p:web", cfg); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestSupervisor_StartAfterExitReplacesRecord(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ProcessConfig{Command: "true", Port: freePort(t)}

	first, err := s.Start("p", "job", cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:job", StatusStopped)

	cfg.Command = "sleep 30"
	second, err := s.Start("p", "job", cfg)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second.RunID == first.RunID {
		t.Error("expected a new run id")
	}
	if got := len(s.List()); got != 1 {
		t.Errorf("List len = %d, want 1", got)
	}
}

func TestSupervisor_IgnoresExitOfReplacedGeneration(t *testing.T) {
	s := newTestSupervisor(t)
	if _, err := s.Start("p", "web", ProcessConfig{Command: "sleep 30", Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stale := &managedProcess{id: "p:web", runID: "stale", done: make(chan struct{})}
	s.handleExit(stale, nil)

	if info, _ := s.Get("p:web"); info.Status != StatusRunning {
		t.Errorf("status = %q after stale exit, want running", info.Status)
	}
}

func TestSupervisor_AllocatesPort(t *testing.T) {
	port := freePort(t)
	alloc := ports.NewAllocator(map[string]ports.Range{"test": {Start: port, End: port}}, ports.Probe{})
	s := newTestSupervisor(t, WithAllocator(alloc))

	info, err := s.Start("p", "web", ProcessConfig{Command: "true", Category: "test"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.Port != port {
		t.Errorf("Port = %d, want %d", info.Port, port)
	}

	waitForStatus(t, s, "p:web", StatusStopped)
	deadline := time.Now().Add(2 * time.Second)
	for alloc.IsAllocated(port) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if alloc.IsAllocated(port) {
		t.Error("port still allocated after exit")
	}
}

func TestSupervisor_AllocatesDistinctPortsPerCategory(t *testing.T) {
	base := freePort(t)
	r := ports.Range{Start: base, End: base + 10}
	alloc := ports.NewAllocator(map[string]ports.Range{"vite": r}, ports.Probe{})
	s := newTestSupervisor(t, WithAllocator(alloc))

	// sleep never binds its port, so only the running record marks it.
	first, err := s.Start("p", "a", ProcessConfig{Command: "sleep 30", Category: "vite"})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := s.Start("p", "b", ProcessConfig{Command: "sleep 30", Category: "vite"})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if first.Port == second.Port {
		t.Errorf("both processes got port %d", first.Port)
	}
	for _, info := range []models.Process{first, second} {
		if info.Port < r.Start || info.Port > r.End {
			t.Errorf("%s port %d outside %s", info.ID, info.Port, r)
		}
	}
	if s.RunningCount() != 2 {
		t.Errorf("RunningCount = %d, want 2", s.RunningCount())
	}
}

func TestSupervisor_NoPortWithoutAllocator(t *testing.T) {
	s := newTestSupervisor(t)
	if _, err := s.Start("p", "web", ProcessConfig{Command: "true"}); !errors.Is(err, ErrPortUnavailable) {
		t.Errorf("err = %v, want ErrPortUnavailable", err)
	}
}

func TestSupervisor_SubscribeLogs(t *testing.T) {
	s := newTestSupervisor(t)

	var mu sync.Mutex
	var got []string
	unsubscribe := s.SubscribeLogs(func(id string, e models.LogEntry) {
		if id != "p:job" {
			return
		}
		mu.Lock()
		got = append(got, e.Message)
		mu.Unlock()
	})
	defer unsubscribe()

	if _, err := s.Start("p", "job", ProcessConfig{Command: `sh -c "echo a; echo b"`, Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:job", StatusStopped)
	waitForLog(t, s, "p:job", "exited")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 4 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"Started process", "a", "b", "exited with code 0"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

type recordingHook struct {
	mu      sync.Mutex
	started []string
	exited  []string
	logs    int
	runLogs [][]models.LogEntry
}

func (h *recordingHook) ProcessStarted(info models.Process) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, info.ID)
}

func (h *recordingHook) ProcessExited(info models.Process, logs []models.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exited = append(h.exited, info.ID+"="+info.Status)
	h.logs = len(logs)
	h.runLogs = append(h.runLogs, logs)
}

func (h *recordingHook) exitCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.exited)
}

func TestSupervisor_Hooks(t *testing.T) {
	hook := &recordingHook{}
	s := newTestSupervisor(t, WithHooks(hook))

	if _, err := s.Start("p", "job", ProcessConfig{Command: "echo hi", Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:job", StatusStopped)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hook.mu.Lock()
		done := len(hook.exited) == 1 && len(hook.started) == 1
		hook.mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if len(hook.started) != 1 || hook.started[0] != "p:job" {
		t.Errorf("started = %v", hook.started)
	}
	if len(hook.exited) != 1 || hook.exited[0] != "p:job=stopped" {
		t.Errorf("exited = %v", hook.exited)
	}
	if hook.logs < 3 {
		t.Errorf("hook saw %d log entries, want at least 3", hook.logs)
	}
}

func TestSupervisor_HookLogsCoverOneRun(t *testing.T) {
	hook := &recordingHook{}
	s := newTestSupervisor(t, WithHooks(hook))
	port := freePort(t)

	for i, word := range []string{"first", "second"} {
		if _, err := s.Start("p", "job", ProcessConfig{Command: "echo " + word, Port: port}); err != nil {
			t.Fatalf("Start %s: %v", word, err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for hook.exitCount() < i+1 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if hook.exitCount() < i+1 {
			t.Fatalf("no exit hook for the %s run", word)
		}
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	got := messages(hook.runLogs[1])
	if indexOf(hook.runLogs[1], "second", 0) < 0 {
		t.Errorf("second run logs = %q, missing its output", got)
	}
	if indexOf(hook.runLogs[1], "first", 0) >= 0 {
		t.Errorf("second run logs = %q, include the first run", got)
	}
	if !strings.Contains(got[0], "Started process") {
		t.Errorf("second run logs start with %q", got[0])
	}
}

func TestSupervisor_LogCapacity(t *testing.T) {
	s := newTestSupervisor(t, WithLogCapacity(3))

	if _, err := s.Start("p", "job", ProcessConfig{Command: `sh -c "echo 1; echo 2; echo 3; echo 4"`, Port: freePort(t)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, s, "p:job", StatusStopped)

	got := messages(s.Logs("p:job", 0))
	if len(got) != 3 || got[0] != "3" || got[1] != "4" || !strings.Contains(got[2], "exited with code 0") {
		t.Errorf("logs = %q", got)
	}
}

func TestSupervisor_StopAll(t *testing.T) {
	s := newTestSupervisor(t)
	for _, name := range []string{"a", "b"} {
		if _, err := s.Start("p", name, ProcessConfig{Command: "sleep 30", Port: freePort(t)}); err != nil {
			t.Fatalf("Start %s: %v", name, err)
		}
	}

	s.StopAll(2 * time.Second)

	for _, id := range []string{"p:a", "p:b"} {
		waitForStatus(t, s, id, StatusStopped)
	}
	if s.RunningCount() != 0 {
		t.Errorf("RunningCount = %d", s.RunningCount())
	}
	if _, err := s.Start("p", "c", ProcessConfig{Command: "sleep 30", Port: freePort(t)}); !errors.Is(err, ErrSupervisorShutdown) {
		t.Errorf("Start after StopAll err = %v, want ErrSupervisorShutdown", err)
	}
}

func TestSupervisor_ListSorted(t *testing.T) {
	s := newTestSupervisor(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Start("p", name, ProcessConfig{Command: "sleep 30", Port: freePort(t)}); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	list := s.List()
	if len(list) != 3 || list[0].ID != "p:alpha" || list[1].ID != "p:mid" || list[2].ID != "p:zeta" {
		t.Errorf("List order = %v", list)
	}
	if s.RunningCount() != 3 {
		t.Errorf("RunningCount = %d, want 3", s.RunningCount())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 15*time.Minute, "2h 15m 0s"},
		{50 * time.Hour, "2d 2h 0m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
