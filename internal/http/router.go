package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gigbridge/internal/auth"
	"gigbridge/internal/config"
	"gigbridge/internal/users"
)

// Dependencies are the services the HTTP layer exposes.
type Dependencies struct {
	Clients clientRegistry
	Auth    *auth.Service
	OAuth   oauthStarter
	Users   *users.Service
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", clientHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	if !cfg.BackendEnabled() {
		logger.Warn("backend auth service not configured; sign-in endpoints return 503")
	}

	withClient := newClientMiddleware(deps.Clients, logger)
	clientHandler := NewClientHandler(deps.Clients, cfg.Environment, logger)
	navigationHandler := NewNavigationHandler(logger)
	sessionHandler := NewSessionHandler(deps.Auth, logger)
	oauthHandler := NewOAuthHandler(deps.OAuth, deps.Auth, deps.Clients, cfg.FrontendURL, cfg.Environment, logger)
	onboardingHandler := NewOnboardingHandler(deps.Users, logger)
	passwordHandler := NewPasswordHandler(deps.Auth, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", clientHandler.Open)
			r.With(withClient).Delete("/current", clientHandler.Close)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/oauth/{provider}", oauthHandler.Initiate)
			r.Get("/callback", oauthHandler.Callback)
		})

		r.Route("/password", func(r chi.Router) {
			r.Post("/forgot", passwordHandler.Forgot)
			r.With(withClient).Post("/reset", passwordHandler.Reset)
		})

		r.Group(func(r chi.Router) {
			r.Use(withClient)
			r.Route("/navigation", func(r chi.Router) {
				r.Get("/", navigationHandler.Pending)
				r.Post("/resolve", navigationHandler.Resolve)
				r.Post("/deeplink", navigationHandler.DeepLink)
			})
			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.Status)
				r.Delete("/", sessionHandler.SignOut)
				r.Post("/password", sessionHandler.SignIn)
				r.Post("/signup", sessionHandler.SignUp)
			})
			r.Route("/onboarding", func(r chi.Router) {
				r.Post("/role", onboardingHandler.SelectRole)
				r.Post("/complete", onboardingHandler.Complete)
			})
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
