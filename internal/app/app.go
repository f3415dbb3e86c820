// Package app wires configuration into the concrete stores, clients and the
// notification pipeline shared by cmd/api and cmd/notify.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/skyvibes/internal/config"
	"github.com/albapepper/skyvibes/internal/db"
	"github.com/albapepper/skyvibes/internal/devices"
	"github.com/albapepper/skyvibes/internal/geocode"
	"github.com/albapepper/skyvibes/internal/notifications"
	"github.com/albapepper/skyvibes/internal/weather"
)

// App holds the long-lived components built from one Config.
type App struct {
	Store    devices.Store
	DBHealth func(ctx context.Context) error
	Weather  *weather.Client
	Sender   *notifications.ExpoSender
	Pipeline *notifications.Pipeline

	pool *db.Pool
}

// Build opens the configured device store and constructs every client.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	switch cfg.DeviceStore {
	case config.StoreSQLite:
		st, err := devices.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.Store = st
		a.DBHealth = st.HealthCheck
		logger.Info("Device store ready", "backend", config.StoreSQLite, "path", cfg.SQLitePath)
	default:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.Store = devices.NewPostgresStore(pool.Pool)
		a.DBHealth = pool.HealthCheck
		logger.Info("Device store ready", "backend", config.StorePostgres,
			"min_conns", cfg.DBPoolMinConns, "max_conns", cfg.DBPoolMaxConns)
	}

	a.Weather = weather.NewClient(cfg.OpenMeteoURL, cfg.HTTPTimeout, logger)
	a.Sender = notifications.NewExpoSender(cfg.PushRelayURL, cfg.HTTPTimeout, logger)

	geocoder := geocode.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderRPS, cfg.HTTPTimeout)
	resolver := geocode.NewResolver(geocoder, cfg.FallbackLatitude, cfg.FallbackLongitude, logger)

	a.Pipeline = notifications.NewPipeline(a.Store, resolver, a.Weather, a.Sender, notifications.Options{
		IsolateFailures: cfg.IsolateFailures,
		Concurrency:     cfg.Concurrency,
		Location:        cfg.Timezone,
	}, logger)

	return a, nil
}

// Close releases the device store and, for Postgres, the pool.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
