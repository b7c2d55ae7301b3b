// internal/adapter/storage/alert_postgres.go

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"aegis/internal/domain/alert"
)

// PostgresAlertStore is the durable implementation of alert.Store
type PostgresAlertStore struct {
	db *pgxpool.Pool
}

// NewPostgresAlertStore creates a safety alert store over a pgx pool
func NewPostgresAlertStore(db *pgxpool.Pool) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

// Insert stores a newly created alert
func (s *PostgresAlertStore) Insert(ctx context.Context, a alert.SafetyAlert) error {
	query := `
		INSERT INTO safety_alerts (
			id, message, severity, latitude, longitude,
			location_address, radius_m, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		a.ID, a.Message, string(a.Severity), a.Latitude, a.Longitude,
		a.LocationAddress, a.RadiusMeters, a.CreatedAt, a.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting safety alert: %w", err)
	}

	return nil
}

// Get returns an alert by id
func (s *PostgresAlertStore) Get(ctx context.Context, id string) (*alert.SafetyAlert, error) {
	query := `
		SELECT id, message, severity, latitude, longitude,
		       location_address, radius_m, created_at, expires_at
		FROM safety_alerts
		WHERE id = $1
	`

	var a alert.SafetyAlert
	var severity string
	err := s.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Message, &severity, &a.Latitude, &a.Longitude,
		&a.LocationAddress, &a.RadiusMeters, &a.CreatedAt, &a.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alert.ErrNotFound
		}
		return nil, fmt.Errorf("error querying safety alert: %w", err)
	}
	a.Severity = alert.Severity(severity)

	return &a, nil
}

// List returns all alerts ordered by CreatedAt ascending
func (s *PostgresAlertStore) List(ctx context.Context) ([]alert.SafetyAlert, error) {
	query := `
		SELECT id, message, severity, latitude, longitude,
		       location_address, radius_m, created_at, expires_at
		FROM safety_alerts
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying safety alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.SafetyAlert
	for rows.Next() {
		var a alert.SafetyAlert
		var severity string
		if err := rows.Scan(
			&a.ID, &a.Message, &severity, &a.Latitude, &a.Longitude,
			&a.LocationAddress, &a.RadiusMeters, &a.CreatedAt, &a.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning safety alert: %w", err)
		}
		a.Severity = alert.Severity(severity)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating safety alerts: %w", err)
	}

	return out, nil
}
