package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gigboard/gigboard/internal/models"
)

// PostgresRunRepository implements catalog.RunRepository using PostgreSQL,
// plus the list queries the telemetry API reads from.
type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) CreateRun(ctx context.Context, run models.Run) error {
	query := `
		INSERT INTO runs (id, source_id, started_at, candidates)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.SourceID, run.StartedAt, run.Candidates,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *PostgresRunRepository) FinishRun(ctx context.Context, run models.Run) error {
	query := `
		UPDATE runs SET
			finished_at = $1,
			created = $2,
			consolidated = $3,
			skipped = $4,
			failed = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		run.FinishedAt, run.Created, run.Consolidated, run.Skipped, run.Failed, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (r *PostgresRunRepository) RecordOutcome(ctx context.Context, outcome models.CandidateOutcome) error {
	query := `
		INSERT INTO candidate_outcomes (
			id, run_id, source_id, external_id, title, result, reason, event_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		outcome.ID,
		outcome.RunID,
		outcome.SourceID,
		outcome.ExternalID,
		outcome.Title,
		outcome.Result,
		outcome.Reason,
		nullable(outcome.EventID),
		outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// ListRecentRuns returns the newest runs across all sources.
func (r *PostgresRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, source_id, started_at, finished_at, candidates,
		       created, consolidated, skipped, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(
			&run.ID,
			&run.SourceID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Candidates,
			&run.Created,
			&run.Consolidated,
			&run.Skipped,
			&run.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run rows: %w", err)
	}
	return runs, nil
}

// ListOutcomes returns all recorded outcomes for one run, oldest first.
func (r *PostgresRunRepository) ListOutcomes(ctx context.Context, runID string) ([]models.CandidateOutcome, error) {
	query := `
		SELECT id, run_id, source_id, external_id, title, result, reason, event_id, created_at
		FROM candidate_outcomes
		WHERE run_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.CandidateOutcome
	for rows.Next() {
		var outcome models.CandidateOutcome
		var eventID sql.NullString
		if err := rows.Scan(
			&outcome.ID,
			&outcome.RunID,
			&outcome.SourceID,
			&outcome.ExternalID,
			&outcome.Title,
			&outcome.Result,
			&outcome.Reason,
			&eventID,
			&outcome.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcome.EventID = eventID.String
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outcome rows: %w", err)
	}
	return outcomes, nil
}

// nullable maps "" to NULL for foreign-key columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
