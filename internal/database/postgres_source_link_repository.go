package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresSourceLinkRepository implements catalog.SourceLinkRepository using
// PostgreSQL. The (source_id, external_id) unique constraint backs the
// upsert, so re-ingesting the same upstream listing is always an update.
type PostgresSourceLinkRepository struct {
	db *sql.DB
}

func NewPostgresSourceLinkRepository(db *sql.DB) *PostgresSourceLinkRepository {
	return &PostgresSourceLinkRepository{db: db}
}

func (r *PostgresSourceLinkRepository) Get(ctx context.Context, sourceID, externalID string) (*models.SourceLink, error) {
	query := `
		SELECT id, source_id, external_id, event_id, metadata, last_seen_at, created_at
		FROM source_links
		WHERE source_id = $1 AND external_id = $2
	`

	var link models.SourceLink
	var metadataJSON []byte
	err := r.db.QueryRowContext(ctx, query, sourceID, externalID).Scan(
		&link.ID,
		&link.SourceID,
		&link.ExternalID,
		&link.EventID,
		&metadataJSON,
		&link.LastSeenAt,
		&link.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source link: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &link.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal link metadata: %w", err)
		}
	}
	return &link, nil
}

func (r *PostgresSourceLinkRepository) Upsert(ctx context.Context, link models.SourceLink) error {
	metadataJSON, err := json.Marshal(link.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal link metadata: %w", err)
	}

	query := `
		INSERT INTO source_links (
			id, source_id, external_id, event_id, metadata, last_seen_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			metadata = EXCLUDED.metadata,
			last_seen_at = EXCLUDED.last_seen_at
	`
	_, err = r.db.ExecContext(ctx, query,
		link.ID,
		link.SourceID,
		link.ExternalID,
		link.EventID,
		metadataJSON,
		link.LastSeenAt,
		link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source link: %w", err)
	}
	return nil
}
