// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema migration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/skyvibes/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection. Preparing
	// against a missing table fails, so the schema goes first.
	autoMigrate := cfg.DBAutoMigrate
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if autoMigrate {
			if _, err := conn.Exec(ctx, Schema); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Schema is the device_tokens DDL. Matches the table the mobile app's
// registration flow writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS device_tokens (
	token      TEXT PRIMARY KEY,
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate creates the schema on a standalone connection. Used by the
// migrate command when DB_AUTO_MIGRATE is off.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create device_tokens: %w", err)
	}
	return nil
}

// registerPreparedStatements registers all statements the API and notify
// layers use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Devices
		"list_device_tokens": "SELECT token, latitude, longitude FROM device_tokens ORDER BY created_at, token",
		"upsert_device_token": `
			INSERT INTO device_tokens (token, latitude, longitude)
			VALUES ($1, $2, $3)
			ON CONFLICT (token) DO UPDATE SET
				latitude   = COALESCE(EXCLUDED.latitude, device_tokens.latitude),
				longitude  = COALESCE(EXCLUDED.longitude, device_tokens.longitude),
				updated_at = NOW()`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
