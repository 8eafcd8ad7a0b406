// ABOUTME: HTTP API server wiring for dxchart using chi
// ABOUTME: Routes account, chart, clinic, backup, admin, and generate endpoints

package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sjoekim64/dxchart/internal/account"
	"github.com/sjoekim64/dxchart/internal/chart"
	"github.com/sjoekim64/dxchart/internal/textgen"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	accounts  *account.Service
	charts    *chart.Service
	generator textgen.Generator
	logger    *slog.Logger
}

// NewServer creates an API server over the given services.
func NewServer(accounts *account.Service, charts *chart.Service, generator textgen.Generator) *Server {
	if generator == nil {
		generator = textgen.Disabled{}
	}
	return &Server{
		accounts:  accounts,
		charts:    charts,
		generator: generator,
		logger:    slog.Default().With("component", "api"),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Authenticated, including accounts still pending approval
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)
			r.Post("/auth/password", s.handleUpdatePassword)
		})

		// Authenticated and approved
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth, s.requireApproved)

			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)

			r.Get("/charts", s.handleListCharts)
			r.Post("/charts", s.handleSaveChart)
			r.Get("/charts/{fileNo}", s.handleListChartsByFileNo)
			r.Delete("/charts/{fileNo}", s.handleDeleteChart)
			r.Delete("/charts/id/{id}", s.handleDeleteChartByID)

			r.Get("/clinic", s.handleGetClinic)
			r.Put("/clinic", s.handleSaveClinic)

			r.Get("/backup", s.handleExport)
			r.Post("/backup/restore", s.handleRestore)

			r.Post("/generate", s.handleGenerate)
		})

		// Administrator only
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth, s.requireAdmin)

			r.Get("/admin/accounts", s.handleListAccounts)
			r.Get("/admin/accounts/pending", s.handleListPending)
			r.Post("/admin/accounts/{id}/approve", s.handleApprove)
			r.Post("/admin/accounts/{id}/reject", s.handleReject)
			r.Delete("/admin/accounts/{id}", s.handleDeleteAccount)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
