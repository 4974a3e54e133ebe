package models

import "time"

// Process is a point-in-time snapshot of a supervised process.
type Process struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	ProcessName string     `json:"processName"`
	RunID       string     `json:"runId,omitempty"`
	Status      string     `json:"status"`
	Port        int        `json:"port"`
	Pid         int        `json:"pid,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ExitCode    *int       `json:"exitCode,omitempty"`
	Uptime      string     `json:"uptime,omitempty"`
	Memory      string     `json:"memory,omitempty"`
	CPU         string     `json:"cpu,omitempty"`
}

// LogEntry is one captured line of process output.
type LogEntry struct {
	Seq       uint64    `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"level"`
	Message   string    `json:"message"`
}

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)
