// Package controlplane implements the control-plane HTTP surface: CRUD
// over environments, audiences, experiments, variants and allocations,
// status transitions, and both explicit and implicit config publication.
package controlplane

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/publish"
	"github.com/flagforge/flagforge/internal/store"
	"github.com/flagforge/flagforge/internal/telemetry"
)

// Server holds every dependency the HTTP handlers need. Webhook dispatch
// lives on the Publisher, not here - publication is the one event in this
// domain worth notifying external systems about.
type Server struct {
	Store     store.Store
	Publisher *publish.Publisher
	Audit     *audit.Service
	Logger    zerolog.Logger
	AdminKey  string // empty disables the admin-key check entirely
}

// Router builds the full chi router for the control plane.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdminKey)

		r.Route("/environments", func(r chi.Router) {
			r.Post("/", s.handleCreateEnvironment)
			r.Get("/", s.handleListEnvironments)
			r.Get("/{id}", s.handleGetEnvironment)
			r.Delete("/{id}", s.handleDeleteEnvironment)
		})

		r.Route("/audiences", func(r chi.Router) {
			r.Post("/", s.handleCreateAudience)
			r.Get("/", s.handleListAudiences)
			r.Get("/{id}", s.handleGetAudience)
			r.Patch("/{id}", s.handleUpdateAudience)
			r.Delete("/{id}", s.handleDeleteAudience)
		})

		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", s.handleCreateExperiment)
			r.Get("/", s.handleListExperiments)
			r.Get("/{id}", s.handleGetExperiment)
			r.Patch("/{id}", s.handleUpdateExperiment)
			r.Delete("/{id}", s.handleDeleteExperiment)
			r.Post("/{id}/status", s.handleUpdateExperimentStatus)
			r.Post("/{id}/publish", s.handleExplicitPublish)

			r.Post("/{id}/variants", s.handleCreateVariant)
			r.Patch("/{id}/variants/{variantID}", s.handleUpdateVariant)
			r.Delete("/{id}/variants/{variantID}", s.handleDeleteVariant)
			r.Post("/{id}/variants/batch", s.handleBatchVariants)

			r.Put("/{id}/allocations", s.handleReplaceAllocations)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
