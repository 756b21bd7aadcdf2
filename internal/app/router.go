package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ecclesia/ecclesia/internal/auth"
	"github.com/ecclesia/ecclesia/internal/observability"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/view"
	"github.com/ecclesia/ecclesia/jobs"
	"github.com/ecclesia/ecclesia/report"
	"github.com/ecclesia/ecclesia/web"
)

// Mounter is implemented by every screen handler.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	AuthHandler    *auth.Handler
	HomeHandler    Mounter
	// Screens maps a path prefix such as "/members" to its handler.
	Screens       map[string]Mounter
	ReportHandler *report.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with Ecclesia defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuth)
		if params.HomeHandler != nil {
			params.HomeHandler.MountRoutes(r)
		}
		for prefix, screen := range params.Screens {
			r.Route(prefix, screen.MountRoutes)
		}
	})

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.NotFound(errorPage(params, http.StatusNotFound, "Page introuvable"))
	r.MethodNotAllowed(errorPage(params, http.StatusMethodNotAllowed, "Méthode non autorisée"))

	return r
}

type errorData struct {
	Status  int
	Message string
}

func errorPage(params RouterParams, status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if params.Templates == nil {
			http.Error(w, message, status)
			return
		}
		data := view.NewTemplateData(r, params.CSRFManager, message, errorData{Status: status, Message: message})
		if err := params.Templates.RenderStatus(w, status, "pages/error.html", data); err != nil {
			params.Logger.Error("render error page", slog.Any("error", err))
			http.Error(w, message, status)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
