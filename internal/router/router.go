package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-task-manager/internal/config"
	"go-task-manager/internal/handler"
	"go-task-manager/internal/middleware"
	"go-task-manager/internal/model"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Reset   *handler.ResetHandler
	User    *handler.UserHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
}

func New(cfg *config.Config, logger *slog.Logger, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.TrustedProxyPrefixes())

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Health.Check)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/signup", h.Auth.Signup)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)

			auth.Route("/password-reset", func(reset chi.Router) {
				reset.Post("/request", h.Reset.Request)
				reset.Post("/verify", h.Reset.Verify)
				reset.Post("/confirm", h.Reset.Confirm)
			})
		})

		api.With(authMiddleware.RequireRole(model.RoleAdmin)).Get("/admin/users", h.User.List)
	})

	return r
}
