package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/analytics"
	"github.com/pulsemetrics/analytics-gateway/internal/directory"
	"github.com/pulsemetrics/analytics-gateway/internal/obs"
	"github.com/pulsemetrics/analytics-gateway/internal/transport/middleware"
	"github.com/pulsemetrics/analytics-gateway/internal/transport/swagger"
)

// RouterDeps carries everything route registration needs.
type RouterDeps struct {
	Config           *internal.Config
	DirectoryDB      *sql.DB
	WarehousePinger  Pinger
	Authenticator    middleware.Authenticator
	Privileges       middleware.PrivilegeChecker
	AnalyticsHandler *analytics.Handler
	DirectoryHandler *directory.Handler
	RequestValidator func(http.Handler) http.Handler
	Logger           *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	extra := map[string]Pinger{}
	if deps.WarehousePinger != nil {
		extra["warehouse"] = deps.WarehousePinger
	}
	healthHandler := NewHealthHandler(deps.DirectoryDB, extra)

	// Apply global middleware
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	if deps.Config.Observability.Metrics.Enabled {
		router.Use(obs.Instrument)
		router.Handle(deps.Config.Observability.Metrics.Path, obs.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Authenticated routes
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Identity(deps.Authenticator))

			if deps.AnalyticsHandler != nil {
				pr.Group(func(ar chi.Router) {
					if deps.RequestValidator != nil {
						ar.Use(deps.RequestValidator)
					}
					ar.Post("/analytics/query", deps.AnalyticsHandler.Query)
				})
			}

			// Administrative routes require platform privilege
			if deps.DirectoryHandler != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequirePlatform(deps.Privileges, deps.Logger))

					ar.Route("/admin", func(admin chi.Router) {
						admin.Post("/organizations", deps.DirectoryHandler.CreateOrganization)
						admin.Delete("/organizations/{id}", deps.DirectoryHandler.DeactivateOrganization)

						admin.Get("/organizations/{id}/grants", deps.DirectoryHandler.ListGrants)
						admin.Post("/organizations/{id}/grants", deps.DirectoryHandler.AttachApp)
						admin.Delete("/organizations/{id}/grants/{appId}", deps.DirectoryHandler.DetachApp)

						admin.Post("/roles", deps.DirectoryHandler.AssignRole)

						admin.Post("/agency-links", deps.DirectoryHandler.LinkAgency)
						admin.Delete("/agency-links/{agencyId}/{clientId}", deps.DirectoryHandler.DeactivateAgencyLink)
					})
				})
			}
		})
	})
}
