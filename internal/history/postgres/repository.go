package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lynnlangit/gcp-variant-transforms/internal/history"
)

// Repository stores run history in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) StartRun(ctx context.Context, datasetID string) (int64, error) {
	query := `
INSERT INTO suite_run (dataset_id, status)
VALUES ($1, $2)
RETURNING run_id`

	var runID int64
	err := r.db.QueryRowContext(ctx, query, datasetID, string(history.StatusRunning)).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

func (r *Repository) RecordCaseResult(ctx context.Context, runID int64, result history.CaseResult) error {
	query := `
INSERT INTO case_result (run_id, test_name, table_name, status, failure_message, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		runID,
		result.TestName,
		result.TableName,
		string(result.Status),
		result.FailureMessage,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record case result %q: %w", result.TestName, err)
	}
	return nil
}

func (r *Repository) FinishRun(ctx context.Context, runID int64, status history.RunStatus) error {
	query := `
UPDATE suite_run
SET status = $2, finished_at = NOW()
WHERE run_id = $1`

	result, err := r.db.ExecContext(ctx, query, runID, string(status))
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %d: rows affected: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %d: run not found", runID)
	}
	return nil
}
