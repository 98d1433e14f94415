package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresSourceRepository implements catalog.SourceRepository using
// PostgreSQL. Source rows are managed out of band; the engine only reads.
type PostgresSourceRepository struct {
	db *sql.DB
}

func NewPostgresSourceRepository(db *sql.DB) *PostgresSourceRepository {
	return &PostgresSourceRepository{db: db}
}

const sourceColumns = `id, slug, name, aggregate_on_index, identity_family, enabled, created_at`

func (r *PostgresSourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	var source models.Source
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&source.ID,
		&source.Slug,
		&source.Name,
		&source.AggregateOnIndex,
		&source.IdentityFamily,
		&source.Enabled,
		&source.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return &source, nil
}

func (r *PostgresSourceRepository) ListEnabled(ctx context.Context) ([]models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var source models.Source
		if err := rows.Scan(
			&source.ID,
			&source.Slug,
			&source.Name,
			&source.AggregateOnIndex,
			&source.IdentityFamily,
			&source.Enabled,
			&source.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source rows: %w", err)
	}
	return sources, nil
}

// SetEnabled toggles a source. Used by the admin API, not the engine.
func (r *PostgresSourceRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sources SET enabled = $1 WHERE id = $2`,
		enabled, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("source %s not found", id)
	}
	return nil
}
