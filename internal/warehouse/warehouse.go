package warehouse

import "context"

// Result is the outcome of one warehouse query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Warehouse is the destination system assertion queries run against. Datasets
// group the tables of one harness run so they can be dropped together.
type Warehouse interface {
	CreateDataset(ctx context.Context, datasetID string) error
	RegisterTable(ctx context.Context, datasetID, tableName string, dataFiles []string) error
	Query(ctx context.Context, sqlText string) (Result, error)
	ListTables(ctx context.Context, datasetID string) ([]string, error)
	DropDataset(ctx context.Context, datasetID string) error
	Close() error
}
