package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresVenueRepository implements catalog.VenueRepository using PostgreSQL.
type PostgresVenueRepository struct {
	db *sql.DB
}

func NewPostgresVenueRepository(db *sql.DB) *PostgresVenueRepository {
	return &PostgresVenueRepository{db: db}
}

const venueColumns = `id, name, normalized_name, address, city, country,
	latitude, longitude, metadata, created_at, updated_at`

// GetByID retrieves a venue by its ID, nil when absent.
func (r *PostgresVenueRepository) GetByID(ctx context.Context, id string) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindNearby returns the venue with the given normalized name within
// radiusMeters of the point, scoped to city when city is non-empty.
// Placeholder venues match on name+city alone: they carry no real
// coordinates to measure against. The bounding-box predicate keeps the
// name index useful; the Haversine expression does the exact cut.
func (r *PostgresVenueRepository) FindNearby(ctx context.Context, normalizedName, city string, lat, lon, radiusMeters float64) (*models.Venue, error) {
	// ~1 degree latitude is 111km; longitude shrinks with cos(lat), the 2x
	// fudge keeps the box conservative away from the equator.
	degLat := radiusMeters / 111000.0
	degLon := degLat * 2

	query := `
		SELECT ` + venueColumns + `
		FROM venues
		WHERE normalized_name = $1
		  AND ($2 = '' OR city = '' OR city = $2)
		  AND (
		    (metadata->>'placeholder')::boolean IS TRUE
		    OR (
		      latitude BETWEEN $3 - $5 AND $3 + $5
		      AND longitude BETWEEN $4 - $6 AND $4 + $6
		      AND 2 * 6371000 * asin(sqrt(
		            power(sin(radians(latitude - $3) / 2), 2) +
		            cos(radians($3)) * cos(radians(latitude)) *
		            power(sin(radians(longitude - $4) / 2), 2)
		      )) <= $7
		    )
		  )
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query,
		normalizedName, city, lat, lon, degLat, degLon, radiusMeters))
}

// FindByNormalizedName returns the venue with the given normalized name in
// the city scope, ignoring coordinates.
func (r *PostgresVenueRepository) FindByNormalizedName(ctx context.Context, normalizedName, city string) (*models.Venue, error) {
	query := `
		SELECT ` + venueColumns + `
		FROM venues
		WHERE normalized_name = $1 AND ($2 = '' OR city = '' OR city = $2)
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, normalizedName, city))
}

// Insert stores a new venue. Returns catalog.ErrDuplicate when the
// (normalized_name, city) constraint fires.
func (r *PostgresVenueRepository) Insert(ctx context.Context, venue models.Venue) error {
	metadataJSON, err := json.Marshal(venue.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal venue metadata: %w", err)
	}

	query := `
		INSERT INTO venues (
			id, name, normalized_name, address, city, country,
			latitude, longitude, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		venue.ID,
		venue.Name,
		venue.NormalizedName,
		venue.Address,
		venue.City,
		venue.Country,
		venue.Latitude,
		venue.Longitude,
		metadataJSON,
		venue.CreatedAt,
		venue.UpdatedAt,
	)
	if err := mapUniqueViolation(err); err != nil {
		return err
	}
	return nil
}

func (r *PostgresVenueRepository) scanOne(row *sql.Row) (*models.Venue, error) {
	var venue models.Venue
	var metadataJSON []byte

	err := row.Scan(
		&venue.ID,
		&venue.Name,
		&venue.NormalizedName,
		&venue.Address,
		&venue.City,
		&venue.Country,
		&venue.Latitude,
		&venue.Longitude,
		&metadataJSON,
		&venue.CreatedAt,
		&venue.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query venue: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &venue.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal venue metadata: %w", err)
		}
	}
	return &venue, nil
}
