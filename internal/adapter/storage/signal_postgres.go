// internal/adapter/storage/signal_postgres.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"aegis/internal/domain/signal"
)

// PostgresSignalStore is the durable implementation of signal.Store. The
// active -> resolved transition is guarded in SQL so concurrent resolves of
// one signal produce exactly one state change.
type PostgresSignalStore struct {
	db *pgxpool.Pool
}

// NewPostgresSignalStore creates a distress signal store over a pgx pool
func NewPostgresSignalStore(db *pgxpool.Pool) *PostgresSignalStore {
	return &PostgresSignalStore{db: db}
}

// Insert stores a newly created signal
func (s *PostgresSignalStore) Insert(ctx context.Context, sig signal.DistressSignal) error {
	query := `
		INSERT INTO distress_signals (id, latitude, longitude, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		sig.ID, sig.Latitude, sig.Longitude, string(sig.Status), sig.CreatedAt, sig.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting distress signal: %w", err)
	}

	return nil
}

// Get returns a signal by id
func (s *PostgresSignalStore) Get(ctx context.Context, id string) (*signal.DistressSignal, error) {
	query := `
		SELECT id, latitude, longitude, status, created_at, resolved_at
		FROM distress_signals
		WHERE id = $1
	`

	sig, err := scanSignal(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, signal.ErrNotFound
		}
		return nil, fmt.Errorf("error querying distress signal: %w", err)
	}

	return sig, nil
}

// Resolve transitions a signal to resolved. The UPDATE only matches active
// rows; when it matches nothing the signal is either unknown or already
// resolved, decided by a follow-up read.
func (s *PostgresSignalStore) Resolve(ctx context.Context, id string, at time.Time) (*signal.DistressSignal, bool, error) {
	query := `
		UPDATE distress_signals
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = $4
		RETURNING id, latitude, longitude, status, created_at, resolved_at
	`

	sig, err := scanSignal(s.db.QueryRow(ctx, query,
		id, string(signal.StatusResolved), at, string(signal.StatusActive),
	))
	if err == nil {
		return sig, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("error resolving distress signal: %w", err)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	return existing, true, nil
}

// ListActive returns active signals ordered by CreatedAt ascending
func (s *PostgresSignalStore) ListActive(ctx context.Context) ([]signal.DistressSignal, error) {
	query := `
		SELECT id, latitude, longitude, status, created_at, resolved_at
		FROM distress_signals
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, string(signal.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("error querying active distress signals: %w", err)
	}
	defer rows.Close()

	var out []signal.DistressSignal
	for rows.Next() {
		var sig signal.DistressSignal
		var status string
		if err := rows.Scan(&sig.ID, &sig.Latitude, &sig.Longitude, &status, &sig.CreatedAt, &sig.ResolvedAt); err != nil {
			return nil, fmt.Errorf("error scanning distress signal: %w", err)
		}
		sig.Status = signal.Status(status)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distress signals: %w", err)
	}

	return out, nil
}

// scanSignal reads a distress signal row
func scanSignal(row pgx.Row) (*signal.DistressSignal, error) {
	var sig signal.DistressSignal
	var status string
	if err := row.Scan(&sig.ID, &sig.Latitude, &sig.Longitude, &status, &sig.CreatedAt, &sig.ResolvedAt); err != nil {
		return nil, err
	}
	sig.Status = signal.Status(status)
	return &sig, nil
}
