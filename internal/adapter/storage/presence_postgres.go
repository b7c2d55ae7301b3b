// internal/adapter/storage/presence_postgres.go

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"aegis/internal/adapter/cache"
	"aegis/internal/domain/feed"
	"aegis/internal/domain/presence"
)

// PostgresPresenceStore is the durable implementation of presence.Store.
// Last-writer-wins is enforced in SQL: an upsert only takes effect when its
// last_updated is not older than the stored row's. first_seen_at is set
// once on insert and drives ListAll's stable iteration order.
type PostgresPresenceStore struct {
	db    *pgxpool.Pool
	bus   feed.Bus
	cache *cache.PresenceCache
}

// NewPostgresPresenceStore creates a presence store over a pgx pool. Both
// bus and cache may be nil.
func NewPostgresPresenceStore(db *pgxpool.Pool, bus feed.Bus, presenceCache *cache.PresenceCache) *PostgresPresenceStore {
	return &PostgresPresenceStore{
		db:    db,
		bus:   bus,
		cache: presenceCache,
	}
}

// Upsert writes a user's location. Backend failures surface as
// presence.ErrStorageUnavailable so the publisher can log and continue.
func (s *PostgresPresenceStore) Upsert(ctx context.Context, loc presence.UserLocation) error {
	if loc.UserID == "" {
		return presence.ErrInvalidUserID
	}

	query := `
		INSERT INTO user_locations (user_id, latitude, longitude, last_updated, first_seen_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET
			latitude = $2,
			longitude = $3,
			last_updated = $4
		WHERE user_locations.last_updated <= $4
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := s.db.QueryRow(ctx, query,
		loc.UserID, loc.Latitude, loc.Longitude, loc.LastUpdated,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// LWW guard rejected a stale write; nothing changed.
			return nil
		}
		return fmt.Errorf("%w: %v", presence.ErrStorageUnavailable, err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, loc)
	}

	if s.bus != nil {
		kind := feed.KindUpdate
		if inserted {
			kind = feed.KindInsert
		}
		s.bus.Publish(feed.StreamPresence, kind, loc)
	}

	return nil
}

// Get returns the last known location for a user, consulting the cache
// first when one is configured
func (s *PostgresPresenceStore) Get(ctx context.Context, userID string) (*presence.UserLocation, error) {
	if s.cache != nil {
		if loc := s.cache.Get(ctx, userID); loc != nil {
			return loc, nil
		}
	}

	query := `
		SELECT user_id, latitude, longitude, last_updated
		FROM user_locations
		WHERE user_id = $1
	`

	var loc presence.UserLocation
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&loc.UserID, &loc.Latitude, &loc.Longitude, &loc.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, presence.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", presence.ErrStorageUnavailable, err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, loc)
	}

	return &loc, nil
}

// ListAll returns every record in first-seen insertion order
func (s *PostgresPresenceStore) ListAll(ctx context.Context) ([]presence.UserLocation, error) {
	query := `
		SELECT user_id, latitude, longitude, last_updated
		FROM user_locations
		ORDER BY first_seen_at ASC, user_id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", presence.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []presence.UserLocation
	for rows.Next() {
		var loc presence.UserLocation
		if err := rows.Scan(&loc.UserID, &loc.Latitude, &loc.Longitude, &loc.LastUpdated); err != nil {
			return nil, fmt.Errorf("error scanning user location: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", presence.ErrStorageUnavailable, err)
	}

	return out, nil
}
