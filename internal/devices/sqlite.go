package devices

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS device_tokens (
	token      TEXT PRIMARY KEY,
	latitude   REAL,
	longitude  REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore is a file-backed store for local development.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// FetchAll returns all registered devices in registration order.
func (s *SQLiteStore) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, latitude, longitude FROM device_tokens ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&r.Token, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		if lat.Valid {
			r.Latitude = Float(lat.Float64)
		}
		if lon.Valid {
			r.Longitude = Float(lon.Float64)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Upsert registers a token, updating its coordinates on re-registration.
func (s *SQLiteStore) Upsert(ctx context.Context, r Record) error {
	if err := Validate(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_tokens (token, latitude, longitude)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			latitude   = COALESCE(excluded.latitude, device_tokens.latitude),
			longitude  = COALESCE(excluded.longitude, device_tokens.longitude),
			updated_at = CURRENT_TIMESTAMP`,
		r.Token, r.Latitude, r.Longitude)
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database file is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
