package service

import "errors"

var (
	ErrProcessNotFound    = errors.New("process not found")
	ErrAlreadyRunning     = errors.New("process already running")
	ErrNotRunning         = errors.New("process not running")
	ErrPortUnavailable    = errors.New("port unavailable")
	ErrSpawnFailure       = errors.New("failed to spawn process")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")
)
