package service

import "devdash/internal/models"

// LifecycleHook observes process starts and exits. Hooks run on their own
// goroutine and must not call back into the Supervisor synchronously.
type LifecycleHook interface {
	ProcessStarted(info models.Process)
	ProcessExited(info models.Process, logs []models.LogEntry)
}

func (s *Supervisor) notifyStarted(info models.Process) {
	for _, h := range s.hooks {
		go s.runHook(info.ID, func() { h.ProcessStarted(info) })
	}
}

func (s *Supervisor) notifyExited(info models.Process, logs []models.LogEntry) {
	for _, h := range s.hooks {
		go s.runHook(info.ID, func() { h.ProcessExited(info, logs) })
	}
}

func (s *Supervisor) runHook(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("lifecycle hook panicked", "id", id, "panic", r)
		}
	}()
	fn()
}
