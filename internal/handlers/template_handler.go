package handlers

import (
	"html/template"
	"io/fs"
	"net/http"

	"github.com/charmbracelet/log"

	"devdash/internal/models"
	"devdash/internal/service"
)

type PageData struct {
	Title        string
	PageTitle    string
	Projects     []ProjectView
	Running      int
	Total        int
	RunningRatio int
}

type ProjectView struct {
	models.Project
	Rows []ProcessRow
}

// ProcessRow joins a configured process with its last known state.
type ProcessRow struct {
	ID      string
	Spec    models.ProcessSpec
	State   models.Process
	Known   bool
	Running bool
}

type TemplateHandler struct {
	templates *template.Template
	catalog   Catalog
	sup       Supervisor
	logger    *log.Logger
}

func NewTemplateHandler(templatesFS fs.FS, catalog Catalog, sup Supervisor, logger *log.Logger) (*TemplateHandler, error) {
	tmpl, err := template.ParseFS(templatesFS, "*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	return &TemplateHandler{
		templates: tmpl,
		catalog:   catalog,
		sup:       sup,
		logger:    logger,
	}, nil
}

func (th *TemplateHandler) buildPageData(pageTitle string) PageData {
	data := PageData{
		Title:     "devdash - " + pageTitle,
		PageTitle: pageTitle,
	}

	for _, project := range th.catalog.Projects() {
		view := ProjectView{Project: project}
		for _, spec := range project.Processes {
			id := service.ProcessID(project.ID, spec.Name)
			state, known := th.sup.Get(id)
			running := known && state.Status == service.StatusRunning
			view.Rows = append(view.Rows, ProcessRow{
				ID:      id,
				Spec:    spec,
				State:   state,
				Known:   known,
				Running: running,
			})
			data.Total++
			if running {
				data.Running++
			}
		}
		data.Projects = append(data.Projects, view)
	}

	if data.Total > 0 {
		data.RunningRatio = data.Running * 100 / data.Total
	}
	return data
}

func (th *TemplateHandler) ServeTemplate(templateName, pageTitle string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := th.buildPageData(pageTitle)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if err := th.templates.ExecuteTemplate(w, templateName+".html", data); err != nil {
			th.logger.Error("execute template", "template", templateName, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
