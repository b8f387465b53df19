package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lynnlangit/gcp-variant-transforms/internal/cli/vtintegration"
	"github.com/lynnlangit/gcp-variant-transforms/internal/config"
	"github.com/lynnlangit/gcp-variant-transforms/internal/history"
	historypostgres "github.com/lynnlangit/gcp-variant-transforms/internal/history/postgres"
	"github.com/lynnlangit/gcp-variant-transforms/internal/observability"
	"github.com/lynnlangit/gcp-variant-transforms/internal/pipeline"
	"github.com/lynnlangit/gcp-variant-transforms/internal/runner"
	s3store "github.com/lynnlangit/gcp-variant-transforms/internal/storage/s3"
	duckdbwarehouse "github.com/lynnlangit/gcp-variant-transforms/internal/warehouse/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("vt-integration")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(2)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	wh, err := duckdbwarehouse.Open(cfg.Warehouse.Path, objectStore)
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = wh.Close() }()

	var recorder history.Recorder = history.NopRecorder{}
	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(ctx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		if err := historypostgres.EnsureSchema(ctx, historyDB); err != nil {
			logger.Error("failed to prepare history schema", slog.Any("error", err))
			os.Exit(1)
		}
		recorder = historypostgres.NewRepository(historyDB)
	}

	dataflowClient, err := pipeline.NewDataflowClient(pipeline.DataflowConfig{
		BaseURL:      cfg.Dataflow.BaseURL,
		APIKey:       cfg.Dataflow.APIKey,
		Project:      cfg.Dataflow.Project,
		Region:       cfg.Dataflow.Region,
		TempLocation: cfg.Dataflow.TempLocation,
		PollInterval: cfg.Dataflow.PollInterval,
		JobTimeout:   cfg.Dataflow.JobTimeout,
	}, nil, logger)
	if err != nil {
		logger.Error("failed to initialize dataflow client", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("starting metrics server", slog.String("addr", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	harness := &runner.Harness{
		Warehouse: wh,
		Store:     objectStore,
		Runners: map[string]pipeline.Runner{
			runner.DefaultRunnerName: pipeline.NewDirectRunner(objectStore, logger),
			"DataflowRunner":         dataflowClient,
		},
		History:     recorder,
		Logger:      logger,
		Parallelism: cfg.Runner.Parallelism,
	}

	code := vtintegration.Run(ctx, os.Args[1:], vtintegration.Options{
		SuiteDir: cfg.Runner.SuiteDir,
		Runner:   harness,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	os.Exit(code)
}
