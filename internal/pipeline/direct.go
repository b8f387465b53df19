package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lynnlangit/gcp-variant-transforms/internal/storage"
	"github.com/lynnlangit/gcp-variant-transforms/internal/vcf"
)

// DirectRunner executes the pipeline in-process: it reads the matching VCF
// objects, applies the merge strategy and writes the result as a parquet data
// file under the run's dataset. Worker sizing parameters are accepted but
// have no effect locally.
type DirectRunner struct {
	Store  storage.ObjectStore
	Logger *slog.Logger
}

func NewDirectRunner(store storage.ObjectStore, logger *slog.Logger) *DirectRunner {
	return &DirectRunner{Store: store, Logger: logger}
}

func (r *DirectRunner) Run(ctx context.Context, request RunRequest) (RunResult, error) {
	if r.Store == nil {
		return RunResult{}, fmt.Errorf("object store is required")
	}
	start := time.Now()

	inputs, err := storage.ExpandPattern(ctx, r.Store, request.InputPattern)
	if err != nil {
		return RunResult{}, fmt.Errorf("expand input pattern: %w", err)
	}

	variants := make([]vcf.Variant, 0)
	for _, input := range inputs {
		reader, err := r.Store.Get(ctx, input.Key)
		if err != nil {
			return RunResult{}, fmt.Errorf("get input %q: %w", input.Key, err)
		}
		parsed, err := vcf.Read(reader)
		if err != nil {
			_ = reader.Close()
			return RunResult{}, fmt.Errorf("parse input %q: %w", input.Key, err)
		}
		if err := reader.Close(); err != nil {
			return RunResult{}, fmt.Errorf("close input %q: %w", input.Key, err)
		}
		variants = append(variants, parsed...)
	}

	merged, err := MergeVariants(request.MergeStrategy, variants)
	if err != nil {
		return RunResult{}, err
	}

	encoded, err := EncodeVariantsToParquet(merged)
	if err != nil {
		return RunResult{}, fmt.Errorf("encode variants to parquet: %w", err)
	}

	dataFilePath, err := storage.BuildDataFilePath(request.DatasetID, request.TableName, 0)
	if err != nil {
		return RunResult{}, fmt.Errorf("build data file path: %w", err)
	}
	if _, err := r.Store.Put(ctx, dataFilePath, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return RunResult{}, fmt.Errorf("put parquet object: %w", err)
	}

	if r.Logger != nil {
		r.Logger.InfoContext(ctx, "direct pipeline run complete",
			slog.String("test_name", request.TestName),
			slog.String("table_name", request.TableName),
			slog.Int("input_files", len(inputs)),
			slog.Int64("rows", encoded.RecordCount),
			slog.String("object_path", dataFilePath),
		)
	}

	return RunResult{
		JobID:     request.TestName,
		DataFiles: []string{dataFilePath},
		RowCount:  encoded.RecordCount,
		Duration:  time.Since(start),
	}, nil
}
