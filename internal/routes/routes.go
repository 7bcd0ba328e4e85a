package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/handlers"
	"github.com/BradenHooton/lantern/internal/middleware"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Settings *handlers.SettingsHandler
	Health   *handlers.HealthHandler
	Metrics  http.Handler
}

// RegisterRoutes registers all application routes. Health and metrics skip identity
// resolution; everything else runs behind the resolver.
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	resolver *auth.Resolver,
	loginLimit middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	router.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics)
	}

	router.Group(func(r chi.Router) {
		r.Use(resolver.Middleware)
		r.Use(middleware.SecureLogger(logger))
		r.Use(middleware.RequireJSON)

		// Public routes
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", h.Auth.Login)
		r.Post("/auth/logout", h.Auth.Logout)
		r.Get("/auth/me", h.Auth.Me)
		r.With(auth.RequireAuth).Post("/auth/logout/all", h.Auth.LogoutEverywhere)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Use(auth.RequireGroup(models.GroupAdmin))
			r.Use(middleware.RateLimitByUser(middleware.RateLimitConfig{RequestsPerMinute: 60}))
			r.Get("/settings/proxy-auth", h.Settings.GetProxyAuth)
			r.Put("/settings/proxy-auth", h.Settings.UpdateProxyAuth)
		})
	})
}
