package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying row-change
// notifications for the trip_data table. NOTIFY payloads are limited
// to 8000 bytes, so the notification carries only the event kind and
// the key; listeners re-fetch the document.
const NotifyChannel = "trip_changes"

// Open connects to Postgres through the pgx stdlib driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the trip_data table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trip_data (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure trip_data: %w", err)
	}
	return nil
}

// PostgresStore keeps the document as one jsonb row in trip_data and
// raises a NOTIFY after each write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get fetches the raw document row. A missing row is confirmed
// absence, not an error.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM trip_data WHERE id = $1`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	return raw, true, nil
}

// Set upserts the document row and notifies listeners. xmax = 0 on the
// upserted row distinguishes an insert from an update.
func (s *PostgresStore) Set(ctx context.Context, key string, raw []byte) error {
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO trip_data (id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		RETURNING (xmax = 0)`, key, raw).Scan(&inserted)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}

	event := "updated"
	if inserted {
		event = "created"
	}
	payload, err := json.Marshal(Notification{Event: event, ID: key})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
