// Package decisionapi implements the decision fleet's lean HTTP surface:
// a single assignment endpoint plus a health check, both stateless beyond
// the atomically-swapped snapshot each node already holds in
// internal/configstore. Deliberately thinner than internal/controlplane's
// router - it never touches the relational store.
package decisionapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/flagforge/flagforge/internal/configstore"
	"github.com/flagforge/flagforge/internal/telemetry"
)

// Server holds the dependencies the decision handlers need.
type Server struct {
	Configs *configstore.Store
	Logger  zerolog.Logger
}

// Router builds the decision fleet's chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(telemetry.Middleware)

	r.Get("/decide", s.handleDecide)
	r.Get("/health", s.handleHealth)

	return r
}
