package handlers

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"devdash/internal/config"
	"devdash/internal/models"
	"devdash/internal/ports"
	"devdash/internal/service"
)

type fakeSupervisor struct {
	mu       sync.Mutex
	procs    map[string]models.Process
	started  []service.ProcessConfig
	startErr error
	stopErr  error

	emitMu sync.Mutex
	logs   *service.LogBuffer
	broker *service.Broker
}

func newFakeSupervisor() *fakeSupervisor {
	quiet := log.New(io.Discard)
	return &fakeSupervisor{
		procs:  make(map[string]models.Process),
		logs:   service.NewLogBuffer(service.DefaultLogCapacity),
		broker: service.NewBroker(4096, quiet),
	}
}

func (f *fakeSupervisor) emit(id, message string) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	e := f.logs.Append(id, models.LogEntry{Stream: models.StreamStdout, Message: message})
	f.broker.Publish(id, e)
}

func (f *fakeSupervisor) Start(projectID, processName string, cfg service.ProcessConfig) (models.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return models.Process{}, f.startErr
	}
	f.started = append(f.started, cfg)
	info := models.Process{
		ID:          service.ProcessID(projectID, processName),
		ProjectID:   projectID,
		ProcessName: processName,
		Status:      service.StatusRunning,
		Port:        cfg.Port,
	}
	f.procs[info.ID] = info
	return info, nil
}

func (f *fakeSupervisor) Stop(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	info, ok := f.procs[id]
	if !ok {
		return fmt.Errorf("%w: %s", service.ErrProcessNotFound, id)
	}
	info.Status = service.StatusStopped
	f.procs[id] = info
	return nil
}

func (f *fakeSupervisor) Restart(id string, cfg service.ProcessConfig) (models.Process, error) {
	f.mu.Lock()
	info, ok := f.procs[id]
	f.mu.Unlock()
	if !ok {
		return models.Process{}, fmt.Errorf("%w: %s", service.ErrProcessNotFound, id)
	}
	return f.Start(info.ProjectID, info.ProcessName, cfg)
}

func (f *fakeSupervisor) Get(id string) (models.Process, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.procs[id]
	return info, ok
}

func (f *fakeSupervisor) List() []models.Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Process, 0, len(f.procs))
	for _, p := range f.procs {
		out = append(out, p)
	}
	return out
}

func (f *fakeSupervisor) RunningCount() int {
	n := 0
	for _, p := range f.List() {
		if p.Status == service.StatusRunning {
			n++
		}
	}
	return n
}

func (f *fakeSupervisor) Logs(id string, count int) []models.LogEntry {
	if count > 0 {
		return f.logs.Recent(id, count)
	}
	return f.logs.All(id)
}

func (f *fakeSupervisor) SubscribeLogs(fn service.Subscriber) func() {
	return f.broker.Subscribe(fn)
}

const catalogYAML = `
projects:
  - id: shop
    name: Shop
    path: /srv/shop
    type: nextjs
    processes:
      - name: web
        command: npm run dev
        port: 3000
        portArg: --port
        env:
          NODE_ENV: development
      - name: api
        command: node server.js
        port: 0
`

type fileCatalog struct {
	*config.File
}

func (c fileCatalog) Projects() []models.Project {
	return c.File.Projects
}

func newCatalog() fileCatalog {
	f, err := config.ParseProjects([]byte(catalogYAML))
	if err != nil {
		panic(err)
	}
	return fileCatalog{File: f}
}

type fakeAllocator struct {
	next      int
	err       error
	allocated map[int]bool
	busy      map[int]bool
}

func (a *fakeAllocator) Allocate(category string) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.allocated[a.next] = true
	return a.next, nil
}

func (a *fakeAllocator) RangeFor(category string) ports.Range {
	return ports.Range{Start: a.next, End: a.next + 10}
}

func (a *fakeAllocator) IsAvailable(port int) bool { return !a.busy[port] }
func (a *fakeAllocator) IsAllocated(port int) bool { return a.allocated[port] }
func (a *fakeAllocator) Release(port int)          { delete(a.allocated, port) }

func (a *fakeAllocator) Allocated() []int {
	out := make([]int, 0, len(a.allocated))
	for port := range a.allocated {
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}
