package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/pathwise/backend/internal/ai"
	"github.com/pathwise/backend/internal/config"
	"github.com/pathwise/backend/internal/ledger"
	"github.com/pathwise/backend/internal/notify"
	"github.com/pathwise/backend/internal/orchestrator"
	"github.com/pathwise/backend/internal/repository"
	"github.com/pathwise/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	if err := repository.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	guideRepo := repository.NewGuideRepo(pool)
	artifactRepo := repository.NewArtifactRepo(pool)

	// Token ledger
	ledgerSvc := ledger.NewService(pool, accountRepo, ledgerRepo)

	// AI gateway: Gemini primary, OpenAI fallback
	gemini, err := ai.NewGeminiProvider(ai.GeminiOptions{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	if err != nil {
		slog.Error("Failed to create Gemini provider", "error", err)
		os.Exit(1)
	}
	var fallback ai.Provider
	if cfg.OpenAIAPIKey != "" {
		openai, err := ai.NewOpenAIProvider(ai.OpenAIOptions{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel})
		if err != nil {
			slog.Error("Failed to create OpenAI provider", "error", err)
			os.Exit(1)
		}
		fallback = openai
	} else {
		slog.Warn("OPENAI_API_KEY not set, running without a fallback provider")
	}
	gateway := ai.NewGateway(gemini, fallback, logger)

	// Payload validation
	validator, err := services.NewValidator(ctx, cfg.SchemaDir)
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// Completion notifications
	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	// Orchestrator: insert func is set after River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn orchestrator.InsertGenerateTaskTxFunc
	insertGenerateTask := func(ctx context.Context, tx pgx.Tx, args orchestrator.GenerateTaskArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	executors := orchestrator.NewExecutors(gateway)
	orchSvc := orchestrator.NewService(taskRepo, guideRepo, artifactRepo, ledgerSvc, validator, executors, notifier, insertGenerateTask, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, orchestrator.NewGenerateTaskWorker(orchSvc))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args orchestrator.GenerateTaskArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	mux := http.NewServeMux()
	RegisterRoutes(mux, cfg, ledgerSvc, orchSvc, accountRepo, ledgerRepo, taskRepo, guideRepo, artifactRepo, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes generation jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
