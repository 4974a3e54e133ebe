package api

import (
	"io/fs"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"devdash/internal/handlers"
)

// DefaultOrigins are the dashboard dev servers allowed on top of any
// configured origins.
var DefaultOrigins = []string{"http://localhost:3100", "http://localhost:5173", "http://localhost:3000"}

type Dependencies struct {
	Supervisor     handlers.Supervisor
	Catalog        handlers.Catalog
	Ports          handlers.PortAllocator
	TemplatesFS    fs.FS
	StaticFS       fs.FS
	AllowedOrigins []string
	Logger         *log.Logger
}

type Router struct {
	*mux.Router
	origins []string
}

func NewRouter(deps Dependencies) (*Router, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	origins := append(append([]string{}, DefaultOrigins...), deps.AllowedOrigins...)

	r := mux.NewRouter()

	tmplHandler, err := handlers.NewTemplateHandler(deps.TemplatesFS, deps.Catalog, deps.Supervisor, logger)
	if err != nil {
		return nil, err
	}

	procHandler := handlers.NewProcessHandler(deps.Supervisor, deps.Catalog)
	projHandler := handlers.NewProjectHandler(deps.Catalog, deps.Supervisor)
	portHandler := handlers.NewPortHandler(deps.Ports)
	healthHandler := handlers.NewHealthHandler(deps.Supervisor)
	logStream := handlers.NewLogStream(deps.Supervisor, origins, logger.WithPrefix("gateway"))

	r.HandleFunc("/health", healthHandler.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthHandler.ReadyCheck).Methods(http.MethodGet)

	r.HandleFunc("/", tmplHandler.ServeTemplate("dashboard", "Dashboard")).Methods(http.MethodGet)
	r.Handle("/logs", logStream).Methods(http.MethodGet)

	staticHandler := http.FileServer(http.FS(deps.StaticFS))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticHandler))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects", projHandler.GetProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectId}", projHandler.GetProject).Methods(http.MethodGet)

	api.HandleFunc("/processes", procHandler.GetProcesses).Methods(http.MethodGet)
	api.HandleFunc("/processes/start", procHandler.StartProcess).Methods(http.MethodPost)
	api.HandleFunc("/processes/stop", procHandler.StopProcess).Methods(http.MethodPost)
	api.HandleFunc("/processes/restart", procHandler.RestartProcess).Methods(http.MethodPost)
	api.HandleFunc("/processes/{processId}", procHandler.GetProcess).Methods(http.MethodGet)
	api.HandleFunc("/processes/{processId}/logs", procHandler.GetLogs).Methods(http.MethodGet)

	api.HandleFunc("/ports", portHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/ports/allocate", portHandler.Allocate).Methods(http.MethodPost)
	api.HandleFunc("/ports/{port}", portHandler.Check).Methods(http.MethodGet)
	api.HandleFunc("/ports/{port}", portHandler.Release).Methods(http.MethodDelete)

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger.WithPrefix("http")))

	return &Router{Router: r, origins: origins}, nil
}

// Handler wraps the router with CORS handling for the dashboard origins.
func (r *Router) Handler() http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: r.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})(r.Router)
}
