// Package handler provides HTTP handlers for all API endpoints. Handlers talk
// to narrow collaborator interfaces; the concrete stores and clients are
// wired in cmd/api.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/albapepper/skyvibes/internal/api/respond"
	"github.com/albapepper/skyvibes/internal/cache"
	"github.com/albapepper/skyvibes/internal/devices"
	"github.com/albapepper/skyvibes/internal/notifications"
	"github.com/albapepper/skyvibes/internal/weather"
)

// Version is reported at / and in the Swagger document.
const Version = "1.0.0"

var validate = validator.New()

// DeviceRegistrar stores push tokens sent by the app.
type DeviceRegistrar interface {
	Upsert(ctx context.Context, r devices.Record) error
}

// WeatherSource serves the blocks behind the weather and forecast proxies.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Current, error)
	Daily(ctx context.Context, lat, lon float64) (*weather.Daily, error)
}

// Deps are the collaborators a Handler needs. DBHealth may be nil.
type Deps struct {
	Runner   notifications.Runner
	Devices  DeviceRegistrar
	Weather  WeatherSource
	Pusher   notifications.Sender
	Cache    *cache.Cache
	DBHealth func(ctx context.Context) error
	Logger   *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = cache.New(false)
	}
	return &Handler{Deps: d}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status and the docs location.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "SkyVibes Notification API",
		"version": Version,
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.Cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies device store connectivity.
// @Summary Database health check
// @Description Verifies the device store is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.DBHealth == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"database":  "not configured",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.DBHealth(r.Context()); err != nil {
		h.Logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
