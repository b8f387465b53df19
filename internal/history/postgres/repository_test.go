package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/lynnlangit/gcp-variant-transforms/internal/history"
)

func TestStartRun(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO suite_run (dataset_id, status)
VALUES ($1, $2)
RETURNING run_id`)).
		WithArgs("integration_tests_20260826_101500", "running").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow(int64(7)))

	runID, err := repo.StartRun(context.Background(), "integration_tests_20260826_101500")
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if runID != 7 {
		t.Fatalf("runID = %d, want 7", runID)
	}
	assertSQLMock(t, mock)
}

func TestRecordCaseResult(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO case_result (run_id, test_name, table_name, status, failure_message, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs(int64(7), "test-small", "test_small", "failed", "expected num_rows=13, got 12", int64(2500)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordCaseResult(context.Background(), 7, history.CaseResult{
		TestName:       "test-small",
		TableName:      "test_small",
		Status:         history.StatusFailed,
		FailureMessage: "expected num_rows=13, got 12",
		Duration:       2500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordCaseResult() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestFinishRun(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE suite_run
SET status = $2, finished_at = NOW()
WHERE run_id = $1`)).
		WithArgs(int64(7), "passed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FinishRun(context.Background(), 7, history.StatusPassed); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestFinishRunUnknownRun(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE suite_run
SET status = $2, finished_at = NOW()
WHERE run_id = $1`)).
		WithArgs(int64(99), "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.FinishRun(context.Background(), 99, history.StatusFailed)
	if err == nil {
		t.Fatal("FinishRun() expected error for unknown run")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
