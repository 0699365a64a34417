package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmcoleman/bajarun-notify/internal/auth"
)

// SetupRoutes configures all API routes. A nil authManager leaves the API
// open (local mode).
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for auth cookies
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://bajarun.app", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (no auth required)
	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Auth routes (no auth required)
	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"

	r.Route("/api", func(r chi.Router) {
		// Apply auth middleware to all API routes (skip in dev mode)
		if authManager != nil && !devMode {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if authManager.GetSession(req) == nil {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusUnauthorized)
						w.Write([]byte(`{"error":"unauthorized"}`))
						return
					}
					next.ServeHTTP(w, req)
				})
			})
		}

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
			r.Post("/{id}/preview", h.PreviewTemplate)
		})

		r.Route("/triggers", func(r chi.Router) {
			r.Get("/", h.ListTriggers)
			r.Post("/", h.CreateTrigger)
			r.Get("/{id}", h.GetTrigger)
			r.Put("/{id}", h.UpdateTrigger)
			r.Delete("/{id}", h.DeleteTrigger)
			r.Post("/{id}/enable", h.EnableTrigger)
			r.Post("/{id}/disable", h.DisableTrigger)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/send", h.SendNotification)
			r.Post("/bulk", h.BulkSendNotifications)
		})

		r.Route("/outcomes", func(r chi.Router) {
			r.Get("/", h.ListOutcomes)
			r.Post("/export", h.ExportOutcomes)
		})

		// Direct event injection for environments without the SQS change feed
		r.Post("/events", h.InjectEvent)
	})

	return r
}
