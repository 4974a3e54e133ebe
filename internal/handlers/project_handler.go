package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"devdash/internal/models"
	"devdash/internal/service"
)

type ProjectHandler struct {
	catalog Catalog
	sup     Supervisor
}

func NewProjectHandler(catalog Catalog, sup Supervisor) *ProjectHandler {
	return &ProjectHandler{catalog: catalog, sup: sup}
}

// ProjectStatus is a project together with the state of its processes.
type ProjectStatus struct {
	models.Project
	Status []models.Process `json:"status"`
}

func (h *ProjectHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Projects())
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["projectId"]

	project, err := h.catalog.Project(id)
	if err != nil {
		writeError(w, statusFor(err), err, "Project not found: "+id)
		return
	}

	status := make([]models.Process, 0, len(project.Processes))
	for _, spec := range project.Processes {
		if info, ok := h.sup.Get(service.ProcessID(project.ID, spec.Name)); ok {
			status = append(status, info)
		}
	}
	writeJSON(w, http.StatusOK, ProjectStatus{Project: project, Status: status})
}
