// Package api assembles the HTTP surface: middleware, routes and docs.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/skyvibes/internal/api/handler"
	"github.com/albapepper/skyvibes/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	h := handler.New(deps)

	// --- Routes ---

	// Trigger: external cron services issue GET, the app issues POST. Kept
	// outside the gzip group so the handler reaches the raw connection.
	r.Get("/api/send-weather-notifications", h.SendWeatherNotifications)
	r.Post("/api/send-weather-notifications", h.SendWeatherNotifications)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5)) // gzip

		r.Get("/", h.Root)

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.HealthCheck)
			r.Get("/db", h.HealthCheckDB)
		})

		r.Handle("/metrics", promhttp.Handler())

		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

		r.Route("/api", func(r chi.Router) {
			r.Get("/weather", h.GetWeather)
			r.Get("/forecast", h.GetForecast)
			r.Post("/send-notification", h.SendNotification)
			r.Post("/device-tokens", h.RegisterDevice)
		})
	})

	return r
}
