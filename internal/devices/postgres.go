package devices

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads device_tokens through the shared pool. Statements are
// prepared by db.New on every connection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FetchAll returns all registered devices.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, "list_device_tokens")
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Token, &r.Latitude, &r.Longitude); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Upsert registers a token, updating its coordinates on re-registration.
func (s *PostgresStore) Upsert(ctx context.Context, r Record) error {
	if err := Validate(r); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "upsert_device_token", r.Token, r.Latitude, r.Longitude); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }
