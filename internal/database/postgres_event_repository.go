package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresEventRepository implements catalog.EventRepository using
// PostgreSQL. The occurrences union is stored as a JSONB column; appends go
// through a row-level lock so concurrent pipelines never lose an entry.
type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

const eventColumns = `id, title, normalized_title, starts_at, venue_id,
	performer_ids, status, occurrences, created_at, updated_at`

func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListByVenue returns all non-archived events at a venue, oldest first.
func (r *PostgresEventRepository) ListByVenue(ctx context.Context, venueID string) ([]models.CanonicalEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE venue_id = $1 AND status != $2
		ORDER BY created_at
	`
	return r.list(ctx, query, venueID, models.EventStatusArchived)
}

// ListByVenueUpdatedSince returns venue events whose updated_at is at or
// after the given instant.
func (r *PostgresEventRepository) ListByVenueUpdatedSince(ctx context.Context, venueID string, since time.Time) ([]models.CanonicalEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE venue_id = $1 AND status != $2 AND updated_at >= $3
		ORDER BY created_at
	`
	return r.list(ctx, query, venueID, models.EventStatusArchived, since)
}

func (r *PostgresEventRepository) Create(ctx context.Context, event models.CanonicalEvent) error {
	occurrencesJSON, err := json.Marshal(event.Occurrences)
	if err != nil {
		return fmt.Errorf("failed to marshal occurrences: %w", err)
	}

	query := `
		INSERT INTO events (
			id, title, normalized_title, starts_at, venue_id,
			performer_ids, status, occurrences, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.NormalizedTitle,
		event.StartsAt,
		event.VenueID,
		pq.Array(event.PerformerIDs),
		event.Status,
		occurrencesJSON,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// AppendOccurrence adds one entry to the event's dates list under FOR
// UPDATE, deduplicated by (date, time). updated_at is refreshed even when
// the entry was already present: a source re-listing an occurrence is
// evidence the event is still live, and the freshness predictor's indirect
// layer reads updated_at as exactly that signal.
func (r *PostgresEventRepository) AppendOccurrence(ctx context.Context, eventID string, entry models.OccurrenceEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var occurrencesJSON []byte
	err = tx.QueryRowContext(ctx,
		`SELECT occurrences FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&occurrencesJSON)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("event %s not found", eventID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock event row: %w", err)
	}

	var occurrences models.Occurrences
	if err := json.Unmarshal(occurrencesJSON, &occurrences); err != nil {
		return false, fmt.Errorf("failed to unmarshal occurrences: %w", err)
	}

	added := occurrences.AddDate(entry)

	updated, err := json.Marshal(occurrences)
	if err != nil {
		return false, fmt.Errorf("failed to marshal occurrences: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET occurrences = $1, updated_at = NOW() WHERE id = $2`,
		updated, eventID,
	); err != nil {
		return false, fmt.Errorf("failed to update occurrences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit occurrence append: %w", err)
	}
	return added, nil
}

func (r *PostgresEventRepository) UpdateStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event %s not found", eventID)
	}
	return nil
}

// ListRecent returns the most recently updated events for the read API.
func (r *PostgresEventRepository) ListRecent(ctx context.Context, limit int) ([]models.CanonicalEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY updated_at DESC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

func (r *PostgresEventRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.CanonicalEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.CanonicalEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.CanonicalEvent, error) {
	var event models.CanonicalEvent
	var performerIDs pq.StringArray
	var occurrencesJSON []byte

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.NormalizedTitle,
		&event.StartsAt,
		&event.VenueID,
		&performerIDs,
		&event.Status,
		&occurrencesJSON,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.PerformerIDs = performerIDs
	if err := json.Unmarshal(occurrencesJSON, &event.Occurrences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal occurrences: %w", err)
	}
	return &event, nil
}
