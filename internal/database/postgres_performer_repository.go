package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresPerformerRepository implements catalog.PerformerRepository using
// PostgreSQL.
type PostgresPerformerRepository struct {
	db *sql.DB
}

func NewPostgresPerformerRepository(db *sql.DB) *PostgresPerformerRepository {
	return &PostgresPerformerRepository{db: db}
}

func (r *PostgresPerformerRepository) GetByNormalizedName(ctx context.Context, normalizedName string) (*models.Performer, error) {
	query := `
		SELECT id, name, normalized_name, created_at
		FROM performers
		WHERE normalized_name = $1
	`

	var performer models.Performer
	err := r.db.QueryRowContext(ctx, query, normalizedName).Scan(
		&performer.ID,
		&performer.Name,
		&performer.NormalizedName,
		&performer.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query performer: %w", err)
	}
	return &performer, nil
}

// Insert stores a new performer. Returns catalog.ErrDuplicate on a
// normalized-name conflict.
func (r *PostgresPerformerRepository) Insert(ctx context.Context, performer models.Performer) error {
	query := `
		INSERT INTO performers (id, name, normalized_name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		performer.ID,
		performer.Name,
		performer.NormalizedName,
		performer.CreatedAt,
	)
	if err := mapUniqueViolation(err); err != nil {
		return err
	}
	return nil
}
