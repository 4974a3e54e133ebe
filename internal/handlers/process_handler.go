package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"devdash/internal/models"
	"devdash/internal/service"
)

// Supervisor is the process control surface the HTTP layer needs.
type Supervisor interface {
	Start(projectID, processName string, cfg service.ProcessConfig) (models.Process, error)
	Stop(id string) error
	Restart(id string, cfg service.ProcessConfig) (models.Process, error)
	Get(id string) (models.Process, bool)
	List() []models.Process
	RunningCount() int
	Logs(id string, count int) []models.LogEntry
	SubscribeLogs(fn service.Subscriber) (unsubscribe func())
}

// Catalog resolves configured projects and their process definitions.
type Catalog interface {
	Projects() []models.Project
	Project(id string) (models.Project, error)
	Lookup(projectID, processName string) (models.Project, models.ProcessSpec, error)
}

type ProcessHandler struct {
	sup     Supervisor
	catalog Catalog
}

func NewProcessHandler(sup Supervisor, catalog Catalog) *ProcessHandler {
	return &ProcessHandler{sup: sup, catalog: catalog}
}

type processRequest struct {
	ProjectID   string `json:"projectId"`
	ProcessName string `json:"processName"`
	ProcessID   string `json:"processId"`
}

var errBadRequest = errors.New("bad request")

// ProcessConfigFor turns a configured process into launch parameters.
func ProcessConfigFor(project models.Project, spec models.ProcessSpec) service.ProcessConfig {
	return service.ProcessConfig{
		Command:    spec.Command,
		Port:       spec.Port,
		PortArg:    spec.PortArg,
		WorkingDir: project.Path,
		Env:        spec.Env,
		Category:   project.Type,
	}
}

func (h *ProcessHandler) GetProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sup.List())
}

func (h *ProcessHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["processId"]

	info, ok := h.sup.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrProcessNotFound, "Process not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// target decodes a {projectId, processName} body and resolves it.
func (h *ProcessHandler) target(w http.ResponseWriter, r *http.Request) (processRequest, service.ProcessConfig, bool) {
	var req processRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return req, service.ProcessConfig{}, false
	}
	if req.ProjectID == "" || req.ProcessName == "" {
		writeError(w, http.StatusBadRequest, errBadRequest, "projectId and processName required")
		return req, service.ProcessConfig{}, false
	}

	project, spec, err := h.catalog.Lookup(req.ProjectID, req.ProcessName)
	if err != nil {
		writeError(w, statusFor(err), err, "Unknown process "+req.ProcessName+" in project "+req.ProjectID)
		return req, service.ProcessConfig{}, false
	}
	return req, ProcessConfigFor(project, spec), true
}

func (h *ProcessHandler) StartProcess(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := h.target(w, r)
	if !ok {
		return
	}

	info, err := h.sup.Start(req.ProjectID, req.ProcessName, cfg)
	if err != nil {
		writeError(w, statusFor(err), err, "Failed to start process")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "started",
		Message: "Process " + info.ID + " started on port " + strconv.Itoa(info.Port),
		Process: &info,
	})
}

func (h *ProcessHandler) StopProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.ProcessID == "" {
		writeError(w, http.StatusBadRequest, errBadRequest, "processId required")
		return
	}

	if err := h.sup.Stop(req.ProcessID); err != nil {
		writeError(w, statusFor(err), err, "Failed to stop process")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "stopping",
		Message: "Process " + req.ProcessID + " is stopping",
	})
}

func (h *ProcessHandler) RestartProcess(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := h.target(w, r)
	if !ok {
		return
	}

	info, err := h.sup.Restart(service.ProcessID(req.ProjectID, req.ProcessName), cfg)
	if err != nil {
		writeError(w, statusFor(err), err, "Failed to restart process")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "restarted",
		Message: "Process " + info.ID + " restarted",
		Process: &info,
	})
}

// GetLogs returns retained log entries; ?count=N limits them to the last N.
func (h *ProcessHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["processId"]

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errBadRequest, "count must be a non-negative integer")
			return
		}
		count = n
	}

	writeJSON(w, http.StatusOK, h.sup.Logs(id, count))
}
