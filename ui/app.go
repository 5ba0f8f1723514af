// Package ui serves a read-only viewer over stored measurement runs.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bondfuzz/app"
	"bondfuzz/internal"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// App is the report viewer
type App struct {
	router    *chi.Mux
	campaigns *app.CampaignService
	templates *template.Template
	logger    *internal.Logger
}

// Config holds viewer settings
type Config struct {
	Port string
	// ListLimit caps the runs shown on the index page
	ListLimit int
}

// NewApp creates the viewer over the runs stored behind campaigns
func NewApp(config Config, campaigns *app.CampaignService, logger *internal.Logger) (*App, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	funcMap := template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", 100*v) },
		"bd": func(v *float64) string {
			if v == nil {
				return "undefined"
			}
			return fmt.Sprintf("%.4f", *v)
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if config.ListLimit <= 0 {
		config.ListLimit = 100
	}

	a := &App{
		router:    chi.NewRouter(),
		campaigns: campaigns,
		templates: templates,
		logger:    logger,
	}
	a.setupMiddleware()
	a.setupRoutes(config)
	return a, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	staticFS := http.FileServer(http.FS(embeddedFiles))
	a.router.Handle("/static/*", staticFS)
}

func (a *App) setupRoutes(config Config) {
	a.router.Get("/", a.handleIndex(config.ListLimit))
	a.router.Get("/runs/{id}", a.handleRun)
	a.router.Get("/runs/{id}/report.md", a.handleRunMarkdown)
	a.router.Get("/runs/{id}/report.xlsx", a.handleRunWorkbook)
	a.router.Get("/api/runs", a.handleListRuns(config.ListLimit))
	a.router.Get("/api/runs/{id}", a.handleRunJSON)
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Start serves the viewer on port
func (a *App) Start(port string) error {
	a.logger.Info("report viewer listening on :%s", port)
	return http.ListenAndServe(":"+port, a)
}
