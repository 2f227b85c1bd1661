package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hrmquery/hrmquery/internal/config"
	"github.com/hrmquery/hrmquery/internal/dataset"
	"github.com/hrmquery/hrmquery/internal/observability"
	"github.com/hrmquery/hrmquery/internal/storage"
	"github.com/hrmquery/hrmquery/internal/storage/localfs"
	s3store "github.com/hrmquery/hrmquery/internal/storage/s3"
)

func main() {
	localDir := flag.String("local-dir", "", "write parquet files under this directory instead of the object store")
	flag.Parse()

	cfg, err := config.LoadFromEnv("hrmquery-dataset")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	datasetCfg, err := dataset.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load dataset config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.ObjectStore
	if *localDir != "" {
		store, err = localfs.New(*localDir)
	} else {
		store, err = s3store.New(ctx, cfg.ObjectStore)
	}
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	data, err := dataset.Generate(datasetCfg)
	if err != nil {
		logger.Error("failed to generate dataset", slog.Any("error", err))
		os.Exit(1)
	}

	publisher := &dataset.Publisher{Store: store, Prefix: datasetCfg.Prefix, Logger: logger}
	published, err := publisher.Publish(ctx, data)
	if err != nil {
		logger.Error("failed to publish dataset", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset published",
		slog.String("prefix", datasetCfg.Prefix),
		slog.Int64("seed", datasetCfg.Seed),
		slog.String("today", datasetCfg.Today.Format("2006-01-02")),
		slog.Int("employees", len(data.Employees)),
		slog.Int("tables", len(published)),
	)
}
