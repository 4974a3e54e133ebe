package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"devdash/internal/models"
	"devdash/internal/ports"
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
)

const (
	// DefaultKillTimeout is how long Stop waits after SIGTERM before SIGKILL.
	DefaultKillTimeout = 10 * time.Second
	// DefaultRestartDelay lets the OS release the port between stop and start.
	DefaultRestartDelay = 2 * time.Second

	outputDrainTimeout = time.Second
	maxLineSize        = 1024 * 1024
	logPrefix          = "[devdash] "
)

// ProcessID builds the identity key for a project's process.
func ProcessID(projectID, processName string) string {
	return projectID + ":" + processName
}

// managedProcess is one generation of a supervised process. A restart
// creates a new managedProcess; timers and exit handling hold a pointer to
// their own generation and never act on a newer one.
type managedProcess struct {
	id        string
	projectID string
	name      string
	runID     string
	cmd       *exec.Cmd
	status    string
	port      int
	startedAt time.Time
	exitCode  *int
	stopping  bool
	// firstSeq is the sequence of this generation's "started" entry.
	firstSeq  uint64
	killTimer *time.Timer
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	done      chan struct{}
}

func (p *managedProcess) snapshot() models.Process {
	started := p.startedAt
	info := models.Process{
		ID:          p.id,
		ProjectID:   p.projectID,
		ProcessName: p.name,
		RunID:       p.runID,
		Status:      p.status,
		Port:        p.port,
		StartedAt:   &started,
	}
	if p.exitCode != nil {
		code := *p.exitCode
		info.ExitCode = &code
	}
	if p.status == StatusRunning && p.cmd.Process != nil {
		info.Pid = p.cmd.Process.Pid
		info.Uptime = formatDuration(time.Since(p.startedAt))
	}
	return info
}

// Supervisor owns the managed processes, their log buffers and the log
// fan-out. It is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*managedProcess
	closed    bool

	// emitMu keeps append and publish in one order per process.
	emitMu sync.Mutex
	logs   *LogBuffer
	broker *Broker

	probe        ports.Prober
	allocator    *ports.Allocator
	hooks        []LifecycleHook
	killTimeout  time.Duration
	restartDelay time.Duration
	logCapacity  int
	logger       *log.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithAllocator enables port allocation for configs with Port 0 and
// records every started port in the allocator's reservation set.
func WithAllocator(a *ports.Allocator) Option {
	return func(s *Supervisor) { s.allocator = a }
}

func WithProber(p ports.Prober) Option {
	return func(s *Supervisor) { s.probe = p }
}

func WithKillTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.killTimeout = d }
}

func WithRestartDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.restartDelay = d }
}

func WithLogCapacity(n int) Option {
	return func(s *Supervisor) { s.logCapacity = n }
}

func WithHooks(hooks ...LifecycleHook) Option {
	return func(s *Supervisor) { s.hooks = append(s.hooks, hooks...) }
}

func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		processes:    make(map[string]*managedProcess),
		probe:        ports.Probe{},
		killTimeout:  DefaultKillTimeout,
		restartDelay: DefaultRestartDelay,
		logCapacity:  DefaultLogCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.logs = NewLogBuffer(s.logCapacity)
	s.broker = NewBroker(defaultSubscriberQueue, s.logger)
	return s
}

// emit appends a log line for id and publishes it.
func (s *Supervisor) emit(id, stream, message string) models.LogEntry {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	entry := s.logs.Append(id, models.LogEntry{
		Timestamp: time.Now(),
		Stream:    stream,
		Message:   message,
	})
	s.broker.Publish(id, entry)
	return entry
}

// Start launches the process for (projectID, processName). It fails with
// ErrAlreadyRunning if that key is running and ErrPortUnavailable if the
// port cannot be bound or belongs to another running process.
func (s *Supervisor) Start(projectID, processName string, cfg ProcessConfig) (models.Process, error) {
	id := ProcessID(projectID, processName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Process{}, ErrSupervisorShutdown
	}
	if p, ok := s.processes[id]; ok && p.status == StatusRunning {
		return models.Process{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}

	port, err := s.reservePort(cfg)
	if err != nil {
		return models.Process{}, err
	}

	p, err := s.spawn(id, projectID, processName, cfg, port)
	if err != nil {
		if s.allocator != nil && cfg.Port == 0 {
			s.allocator.Release(port)
		}
		s.logger.Error("failed to start process", "id", id, "error", err)
		s.emit(id, models.StreamStderr, logPrefix+"Process error: "+err.Error())
		return models.Process{}, err
	}

	s.processes[id] = p
	if s.allocator != nil {
		s.allocator.MarkAllocated(port)
	}

	info := p.snapshot()
	s.logger.Info("process started", "id", id, "pid", info.Pid, "port", port, "run", p.runID)
	started := s.emit(id, models.StreamStdout, fmt.Sprintf("%sStarted process on port %d", logPrefix, port))
	p.firstSeq = started.Seq
	// Readers start after the "started" entry so child output cannot
	// precede it.
	s.watch(p)
	s.notifyStarted(info)
	return info, nil
}

// reservePort resolves the port for cfg. Caller holds s.mu.
func (s *Supervisor) reservePort(cfg ProcessConfig) (int, error) {
	port := cfg.Port
	if port == 0 {
		if s.allocator == nil {
			return 0, fmt.Errorf("%w: no port configured", ErrPortUnavailable)
		}
		allocated, err := s.allocator.AllocateExcept(cfg.Category, func(candidate int) bool {
			return s.portHolder(candidate) != nil
		})
		if err != nil {
			return 0, err
		}
		return allocated, nil
	}

	if other := s.portHolder(port); other != nil {
		return 0, fmt.Errorf("%w: port %d is held by %s", ErrPortUnavailable, port, other.id)
	}
	if !s.probe.IsAvailable(port) {
		return 0, fmt.Errorf("%w: port %d is already in use", ErrPortUnavailable, port)
	}
	return port, nil
}

// portHolder returns the running process that owns port. Caller holds s.mu.
func (s *Supervisor) portHolder(port int) *managedProcess {
	for _, other := range s.processes {
		if other.status == StatusRunning && other.port == port {
			return other
		}
	}
	return nil
}

// spawn starts the OS process with its output on pipes. Caller holds s.mu.
func (s *Supervisor) spawn(id, projectID, processName string, cfg ProcessConfig, port int) (*managedProcess, error) {
	line, err := BuildCommand(cfg, port, os.Environ())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}

	cmd := exec.Command(line.Path, line.Args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = line.Env
	setProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrSpawnFailure, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrSpawnFailure, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, startErr)
	}

	p := &managedProcess{
		id:        id,
		projectID: projectID,
		name:      processName,
		runID:     uuid.NewString(),
		cmd:       cmd,
		status:    StatusRunning,
		port:      port,
		startedAt: time.Now(),
		stdout:    stdoutR,
		stderr:    stderrR,
		done:      make(chan struct{}),
	}
	return p, nil
}

// watch starts the output readers and the exit waiter for p.
func (s *Supervisor) watch(p *managedProcess) {
	var readers sync.WaitGroup
	readers.Add(2)
	go s.capture(p.id, models.StreamStdout, p.stdout, &readers)
	go s.capture(p.id, models.StreamStderr, p.stderr, &readers)
	go s.wait(p, &readers)
}

// capture turns each line of r into a log entry for id.
func (s *Supervisor) capture(id, stream string, r io.ReadCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		s.emit(id, stream, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("output capture stopped", "id", id, "stream", stream, "error", err)
		io.Copy(io.Discard, r)
	}
}

// wait reaps the process, gives the readers a moment to drain, then
// records the exit.
func (s *Supervisor) wait(p *managedProcess, readers *sync.WaitGroup) {
	waitErr := p.cmd.Wait()
	close(p.done)

	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(outputDrainTimeout):
		s.logger.Debug("output still open after exit", "id", p.id)
	}

	s.handleExit(p, waitErr)
}

func (s *Supervisor) handleExit(p *managedProcess, waitErr error) {
	s.mu.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
	}
	if current, ok := s.processes[p.id]; !ok || current != p {
		s.mu.Unlock()
		s.logger.Debug("ignoring exit of replaced process", "id", p.id, "run", p.runID)
		return
	}

	var message string
	state := p.cmd.ProcessState
	ws, _ := stateWaitStatus(state)
	switch {
	case state == nil:
		p.status = StatusFailed
		code := -1
		p.exitCode = &code
		message = fmt.Sprintf("Process exited abnormally: %v", waitErr)
	case ws.Signaled():
		p.status = StatusFailed
		message = fmt.Sprintf("Process terminated by signal %s", ws.Signal())
	default:
		code := state.ExitCode()
		p.exitCode = &code
		p.status = StatusFailed
		if code == 0 {
			p.status = StatusStopped
		}
		message = fmt.Sprintf("Process exited with code %d", code)
	}
	// An exit the operator asked for is a stop, whatever the code.
	if p.stopping {
		p.status = StatusStopped
		// Group members that ignored SIGTERM outlive a wrapper that did
		// not; they must not keep the port after it is released.
		if err := killGroup(p.cmd.Process); err != nil {
			s.logger.Warn("failed to kill remaining group members", "id", p.id, "error", err)
		}
	}
	info := p.snapshot()
	s.mu.Unlock()

	if s.allocator != nil {
		s.allocator.Release(p.port)
	}

	stream := models.StreamStdout
	if info.Status == StatusFailed {
		stream = models.StreamStderr
	}
	s.logger.Info("process exited", "id", p.id, "status", info.Status, "detail", message)
	s.emit(p.id, stream, logPrefix+message)
	s.notifyExited(info, s.runLogs(p))
}

// runLogs returns the retained entries of p's generation. The buffer is
// keyed by process id and may still hold earlier runs.
func (s *Supervisor) runLogs(p *managedProcess) []models.LogEntry {
	all := s.logs.All(p.id)
	for i, e := range all {
		if e.Seq >= p.firstSeq {
			return all[i:]
		}
	}
	return nil
}

func stateWaitStatus(state *os.ProcessState) (syscall.WaitStatus, bool) {
	var ws syscall.WaitStatus
	if state == nil {
		return ws, false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ws, ok
}

// Stop sends a graceful termination signal and arms the escalation timer.
// It returns without waiting for the process to exit.
func (s *Supervisor) Stop(id string) error {
	s.mu.Lock()
	p, ok := s.processes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	if p.status != StatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	if err := terminate(p.cmd.Process); err != nil {
		s.mu.Unlock()
		if errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("%w: %s is exiting", ErrNotRunning, id)
		}
		return fmt.Errorf("signal %s: %w", id, err)
	}
	if !p.stopping {
		p.stopping = true
		p.killTimer = time.AfterFunc(s.killTimeout, func() { s.escalate(p) })
	}
	s.mu.Unlock()

	s.logger.Info("stopping process", "id", id, "pid", p.cmd.Process.Pid)
	s.emit(id, models.StreamStdout, logPrefix+"Stopping process...")
	return nil
}

// escalate force-kills p if this generation is still alive.
func (s *Supervisor) escalate(p *managedProcess) {
	select {
	case <-p.done:
		return
	default:
	}
	s.logger.Warn("process did not exit in time, killing", "id", p.id, "timeout", s.killTimeout)
	s.emit(p.id, models.StreamStderr, fmt.Sprintf("%sProcess did not exit within %s, sending SIGKILL", logPrefix, s.killTimeout))
	if err := kill(p.cmd.Process); err != nil {
		s.logger.Error("failed to kill process", "id", p.id, "error", err)
	}
}

// Restart stops the process, waits the settling delay and starts it again
// with cfg. A failed stop aborts the restart.
func (s *Supervisor) Restart(id string, cfg ProcessConfig) (models.Process, error) {
	s.mu.RLock()
	p, ok := s.processes[id]
	var projectID, processName string
	if ok {
		projectID, processName = p.projectID, p.name
	}
	s.mu.RUnlock()
	if !ok {
		return models.Process{}, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	if err := s.Stop(id); err != nil {
		return models.Process{}, err
	}
	time.Sleep(s.restartDelay)
	return s.Start(projectID, processName, cfg)
}

// Get returns a snapshot of one process, with resource usage when running.
func (s *Supervisor) Get(id string) (models.Process, bool) {
	s.mu.RLock()
	p, ok := s.processes[id]
	var info models.Process
	if ok {
		info = p.snapshot()
	}
	s.mu.RUnlock()

	if ok && info.Status == StatusRunning {
		info.Memory = processMemory(info.Pid)
		info.CPU = processCPU(info.Pid)
	}
	return info, ok
}

// List returns snapshots of every known process ordered by id.
func (s *Supervisor) List() []models.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Process, 0, len(s.processes))
	for _, p := range s.processes {
		result = append(result, p.snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RunningCount reports how many processes are running.
func (s *Supervisor) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.processes {
		if p.status == StatusRunning {
			n++
		}
	}
	return n
}

// Logs returns the last count entries for id, or all retained entries when
// count is not positive.
func (s *Supervisor) Logs(id string, count int) []models.LogEntry {
	if count > 0 {
		return s.logs.Recent(id, count)
	}
	return s.logs.All(id)
}

// SubscribeLogs registers fn for every entry published from now on.
func (s *Supervisor) SubscribeLogs(fn Subscriber) (unsubscribe func()) {
	return s.broker.Subscribe(fn)
}

// StopAll stops every running process, waits up to timeout for them to
// exit and kills whatever is left. No process can be started afterwards.
func (s *Supervisor) StopAll(timeout time.Duration) {
	s.mu.Lock()
	s.closed = true
	var running []*managedProcess
	for _, p := range s.processes {
		if p.status == StatusRunning {
			running = append(running, p)
		}
	}
	s.mu.Unlock()

	for _, p := range running {
		if err := s.Stop(p.id); err != nil && !errors.Is(err, ErrNotRunning) {
			s.logger.Error("failed to stop process", "id", p.id, "error", err)
		}
	}

	if !waitExited(running, timeout) {
		for _, p := range running {
			select {
			case <-p.done:
			default:
				s.logger.Warn("killing process after shutdown timeout", "id", p.id)
				_ = kill(p.cmd.Process)
			}
		}
		waitExited(running, time.Second)
	}
	s.broker.Close()
}

// waitExited reports whether every process exited within timeout.
func waitExited(procs []*managedProcess, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for _, p := range procs {
		select {
		case <-p.done:
		case <-deadline:
			return false
		}
	}
	return true
}
