// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spout/internal/platform/middleware"
)

// Deps carries everything the router needs.
type Deps struct {
	Identities IdentityService
	Registry   RegistryService
	Orders     OrderService

	Validator              *middleware.Validator
	Logger                 *slog.Logger
	DefaultSubscriptionRef uint64

	// Health reports readiness of backing stores; nil means always ready.
	Health func(r *http.Request) error
}

// NewRouter wires all endpoints. Everything except health and metrics sits
// behind bearer-token auth; registry mutations additionally require the
// registry-owner role and the fulfillment callback the oracle-router role.
func NewRouter(deps Deps) http.Handler {
	identityHandler := NewIdentityHandler(deps.Identities)
	registryHandler := NewRegistryHandler(deps.Registry)
	orderHandler := NewOrderHandler(deps.Orders, deps.DefaultSubscriptionRef)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		identityHandler.Register(r)
		registryHandler.Register(r)
		orderHandler.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleRegistryOwner, deps.Logger))
			registryHandler.RegisterAdmin(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleOracleRouter, deps.Logger))
			orderHandler.RegisterOracle(r)
		})
	})

	return r
}
