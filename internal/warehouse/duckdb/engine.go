package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/lynnlangit/gcp-variant-transforms/internal/storage"
	"github.com/lynnlangit/gcp-variant-transforms/internal/warehouse"
)

// Engine is a DuckDB-backed warehouse. Tables are materialized from parquet
// objects pulled out of the object store; with a file-backed database path,
// datasets survive the process and can be revalidated by a later run.
type Engine struct {
	store storage.ObjectStore
	db    *sql.DB
}

// Open opens the warehouse database. An empty path opens an in-memory
// database that lives only as long as the process.
func Open(path string, store storage.ObjectStore) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Engine{store: store, db: db}, nil
}

func (e *Engine) CreateDataset(ctx context.Context, datasetID string) error {
	if strings.TrimSpace(datasetID) == "" {
		return fmt.Errorf("dataset id is required")
	}
	if _, err := e.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(datasetID)); err != nil {
		return fmt.Errorf("create dataset %q: %w", datasetID, err)
	}
	return nil
}

// RegisterTable materializes one table from its parquet data files. The
// objects are copied to a temp dir only for the duration of the load.
func (e *Engine) RegisterTable(ctx context.Context, datasetID, tableName string, dataFiles []string) error {
	if len(dataFiles) == 0 {
		return fmt.Errorf("no data files for table %q", tableName)
	}

	workDir, err := os.MkdirTemp("", "vt-warehouse-")
	if err != nil {
		return fmt.Errorf("create load temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := make([]string, 0, len(dataFiles))
	for index, objectPath := range dataFiles {
		reader, err := e.store.Get(ctx, objectPath)
		if err != nil {
			return fmt.Errorf("get object %q: %w", objectPath, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(tableName), index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return fmt.Errorf("close object %q: %w", objectPath, err)
		}
		localPaths = append(localPaths, localPath)
	}

	tableSQL := fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s.%s AS SELECT * FROM read_parquet(%s)`,
		quoteIdent(datasetID), quoteIdent(tableName), quoteStringArray(localPaths),
	)
	if _, err := e.db.ExecContext(ctx, tableSQL); err != nil {
		return fmt.Errorf("materialize table %q.%q: %w", datasetID, tableName, err)
	}
	return nil
}

func (e *Engine) Query(ctx context.Context, sqlText string) (warehouse.Result, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return warehouse.Result{}, fmt.Errorf("sql is required")
	}

	rows, err := e.db.QueryContext(ctx, trimmed)
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return warehouse.Result{Columns: columns, Rows: resultRows}, nil
}

func (e *Engine) ListTables(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name`,
		datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", datasetID, err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return tables, nil
}

func (e *Engine) DropDataset(ctx context.Context, datasetID string) error {
	if _, err := e.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+quoteIdent(datasetID)+" CASCADE"); err != nil {
		return fmt.Errorf("drop dataset %q: %w", datasetID, err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
