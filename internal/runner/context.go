package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/lynnlangit/gcp-variant-transforms/internal/warehouse"
)

const datasetIDLayout = "20060102_150405"

// RunContext owns the dataset a suite run writes into and tears it
// down afterwards.
type RunContext struct {
	DatasetID    string
	Revalidation bool
	KeepTables   bool
}

// NewRunContext derives a timestamped dataset id for a fresh run, or
// reuses revalidationDatasetID to re-check tables produced by an
// earlier run without launching pipelines again.
func NewRunContext(now time.Time, keepTables bool, revalidationDatasetID string) RunContext {
	if revalidationDatasetID != "" {
		return RunContext{
			DatasetID:    revalidationDatasetID,
			Revalidation: true,
			KeepTables:   keepTables,
		}
	}
	return RunContext{
		DatasetID:  "integration_tests_" + now.UTC().Format(datasetIDLayout),
		KeepTables: keepTables,
	}
}

// Setup creates the run dataset. Revalidation runs query an existing
// dataset and skip creation.
func (rc RunContext) Setup(ctx context.Context, wh warehouse.Warehouse) error {
	if rc.Revalidation {
		return nil
	}
	if err := wh.CreateDataset(ctx, rc.DatasetID); err != nil {
		return fmt.Errorf("create dataset %q: %w", rc.DatasetID, err)
	}
	return nil
}

// Cleanup drops the run dataset unless the run was asked to keep its
// tables for later revalidation.
func (rc RunContext) Cleanup(ctx context.Context, wh warehouse.Warehouse) error {
	if rc.KeepTables {
		return nil
	}
	if err := wh.DropDataset(ctx, rc.DatasetID); err != nil {
		return fmt.Errorf("drop dataset %q: %w", rc.DatasetID, err)
	}
	return nil
}
