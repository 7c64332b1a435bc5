package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Routes builds the HTTP handler. Every request passes the session gate;
// routes that need an identity add RequireAuth.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.SessionMiddleware)

	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Get("/ws", s.ServeWsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.RegisterHandler)
			r.Post("/login", s.LoginHandler)
			r.Post("/logout", s.LogoutHandler)
			r.Post("/forgot-password", s.ForgotPasswordHandler)
			r.Post("/reset-password", s.ResetPasswordHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.RequireAuth)
				r.Get("/me", s.GetCurrentUserHandler)
				r.Get("/realtime-token", s.RealtimeTokenHandler)
				r.Get("/sessions", s.ListSessionsHandler)
				r.Delete("/sessions", s.DeleteAllSessionsHandler)
				r.Delete("/sessions/{session_id}", s.DeleteSessionHandler)
			})
		})

		r.With(s.RequireAuth).Get("/presence", s.ListPresenceHandler)
	})

	return r
}
