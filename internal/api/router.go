package api

import (
	"net/http"

	"github.com/dom/streamgate/internal/api/handlers"
	"github.com/dom/streamgate/internal/api/middleware"
	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(services *service.Services, health handlers.HealthChecks, counter repository.RateCounter, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logrus.StandardLogger()))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(health)
	authHandler := handlers.NewAuthHandler(services.Auth)
	videoHandler := handlers.NewVideoHandler(services.Catalog, services.Progress)
	streamHandler := handlers.NewStreamHandler(services.Playback, services.Stream)
	internalHandler := handlers.NewInternalHandler(services.Catalog)

	r.Get("/health", healthHandler.Check)

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(counter, "signup", cfg.SignupRateLimit, cfg.RateLimitWindow)).
			Post("/signup", authHandler.Signup)
		r.With(middleware.RateLimit(counter, "login", cfg.LoginRateLimit, cfg.RateLimitWindow)).
			Post("/login", authHandler.Login)
		r.With(middleware.RateLimit(counter, "refresh", cfg.RefreshRateLimit, cfg.RateLimitWindow)).
			Post("/refresh", authHandler.Refresh)

		// Protected auth routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// Playback token in the query string, not the Authorization header
	r.Get("/video/{id}/stream", streamHandler.Stream)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(services.Auth))

		r.Get("/dashboard", videoHandler.Dashboard)
		r.Get("/history", videoHandler.History)

		r.Get("/video/{id}/info", videoHandler.Info)
		r.Get("/video/{id}/progress", videoHandler.Progress)
		r.Post("/video/{id}/watch", videoHandler.Watch)
		r.Get("/video/{id}/stats", videoHandler.Stats)
	})

	// Server-to-server routes
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.Internal(services.Auth))
		r.Post("/catalog/reseed", internalHandler.Reseed)
	})

	return r
}
