package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrmquery/hrmquery/internal/answer"
	"github.com/hrmquery/hrmquery/internal/api"
	auditpostgres "github.com/hrmquery/hrmquery/internal/audit/postgres"
	"github.com/hrmquery/hrmquery/internal/auth"
	"github.com/hrmquery/hrmquery/internal/catalog"
	"github.com/hrmquery/hrmquery/internal/chat"
	"github.com/hrmquery/hrmquery/internal/config"
	"github.com/hrmquery/hrmquery/internal/dataset"
	"github.com/hrmquery/hrmquery/internal/llm"
	"github.com/hrmquery/hrmquery/internal/maintenance"
	"github.com/hrmquery/hrmquery/internal/nl2sql"
	"github.com/hrmquery/hrmquery/internal/observability"
	"github.com/hrmquery/hrmquery/internal/query"
	duckdbengine "github.com/hrmquery/hrmquery/internal/query/duckdb"
	"github.com/hrmquery/hrmquery/internal/query/remote"
	"github.com/hrmquery/hrmquery/internal/report"
	"github.com/hrmquery/hrmquery/internal/storage"
	"github.com/hrmquery/hrmquery/internal/storage/localfs"
	s3store "github.com/hrmquery/hrmquery/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("hrmquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	var objectStore storage.ObjectStore
	if cfg.DataAPI.Executor == config.ExecutorDuckDB || (cfg.Reports.Enabled && cfg.Reports.Backend == config.ReportsBackendS3) {
		objectStore, err = s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	housekeeping := &maintenance.Service{
		Config: maintenance.Config{
			ReportRetention:   cfg.Maintenance.ReportRetention,
			RetentionInterval: cfg.Maintenance.RetentionInterval,
			DatasetPrefix:     cfg.Dataset.Prefix,
			IntegrityInterval: cfg.Maintenance.IntegrityInterval,
		},
		Logger: logger,
	}

	var executor query.Executor
	switch cfg.DataAPI.Executor {
	case config.ExecutorDuckDB:
		engine := duckdbengine.NewEngine(objectStore, cfg.Dataset.Prefix)
		defer func() { _ = engine.Close() }()
		executor = engine
		housekeeping.Dataset = objectStore
		housekeeping.Config.DatasetTables = dataset.TableNames()
	default:
		executor, err = remote.New(cfg.DataAPI)
		if err != nil {
			logger.Error("failed to initialize data api executor", slog.Any("error", err))
			os.Exit(1)
		}
	}

	client, err := llm.New(ctx, cfg.AI)
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}
	translator, err := nl2sql.NewLLMTranslator(client, cfg.AI.Model)
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}
	composer, err := answer.NewComposer(client, cfg.AI.AnswerModel)
	if err != nil {
		logger.Error("failed to initialize answer composer", slog.Any("error", err))
		os.Exit(1)
	}
	schemas, err := catalog.New(cfg.Prompt.CacheSize)
	if err != nil {
		logger.Error("failed to initialize schema catalog", slog.Any("error", err))
		os.Exit(1)
	}

	service := &chat.Service{
		Schema:       schemas,
		Translator:   translator,
		Executor:     executor,
		Composer:     composer,
		Logger:       logger,
		ExecutorName: cfg.DataAPI.Executor,
	}
	deps := api.Dependencies{
		Logger:            logger,
		Chat:              service,
		Schema:            schemas,
		DependencyTimeout: time.Second,
	}

	if cfg.Reports.Enabled {
		reportStore := objectStore
		if cfg.Reports.Backend == config.ReportsBackendLocal {
			reportStore, err = localfs.New(cfg.Reports.Dir)
			if err != nil {
				logger.Error("failed to initialize report directory", slog.Any("error", err))
				os.Exit(1)
			}
		}
		exporter, err := report.NewExporter(reportStore, cfg.Reports.Prefix, cfg.Reports.PublicPath)
		if err != nil {
			logger.Error("failed to initialize report exporter", slog.Any("error", err))
			os.Exit(1)
		}
		service.Exporter = exporter
		deps.Reports = exporter
		housekeeping.Reports = reportStore
	}

	readiness := []api.ReadinessCheck{
		api.CheckDataAPIConfig(cfg),
		api.CheckObjectStoreConfig(cfg),
	}
	var validators auth.Validators
	if cfg.Auth.StaticKeys != "" {
		static, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		validators = append(validators, static)
	}

	if cfg.Audit.Enabled() {
		auditDB, err := auditpostgres.Open(ctx, cfg.Audit)
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		repo := auditpostgres.NewRepository(auditDB)
		service.Audit = repo
		deps.Audit = repo
		validators = append(validators, repo)
		readiness = append(readiness, api.CheckPing(repo.HealthCheck))
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	if cfg.Auth.Required {
		if len(validators) == 0 {
			logger.Error("auth is required but no api keys are configured")
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validators)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if housekeeping.Enabled() {
		go func() { _ = housekeeping.Run(ctx) }()
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("executor", cfg.DataAPI.Executor),
			slog.String("ai_provider", cfg.AI.Provider),
			slog.Bool("reports", cfg.Reports.Enabled),
			slog.Bool("audit", cfg.Audit.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
