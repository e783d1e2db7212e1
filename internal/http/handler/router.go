// Package handler serves the HTTP surface of the live daemon.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes groups what the router mounts. Runs and Metrics are optional.
type Routes struct {
	Health  *HealthHandler
	State   *StateHandler
	Runs    *RunHandler
	Metrics http.Handler
}

// NewRouter builds the chi router.
func NewRouter(rt Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	health := rt.Health
	if health == nil {
		health = &HealthHandler{}
	}
	r.Method(http.MethodGet, "/health", health)
	if rt.State != nil {
		rt.State.RegisterRoutes(r)
	}
	if rt.Runs != nil {
		rt.Runs.RegisterRoutes(r)
	}
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}
	return r
}
