package main

import (
	"log/slog"
	"net/http"

	"github.com/pathwise/backend/internal/billing"
	"github.com/pathwise/backend/internal/config"
	"github.com/pathwise/backend/internal/handlers"
	"github.com/pathwise/backend/internal/ledger"
	"github.com/pathwise/backend/internal/middleware"
	"github.com/pathwise/backend/internal/orchestrator"
	"github.com/pathwise/backend/internal/repository"
)

// RegisterRoutes adds the /v1/ endpoints to the given mux.
// User-facing routes go through JWT auth; the billing webhook is called by
// the payment provider with its own upstream verification.
func RegisterRoutes(
	mux *http.ServeMux,
	cfg config.Config,
	ledgerSvc *ledger.Service,
	orchSvc *orchestrator.Service,
	accountRepo *repository.AccountRepo,
	ledgerRepo *repository.LedgerRepo,
	taskRepo *repository.TaskRepo,
	guideRepo *repository.GuideRepo,
	artifactRepo *repository.ArtifactRepo,
	logger *slog.Logger,
) {
	th := &handlers.TaskHandler{Orchestrator: orchSvc, Tasks: taskRepo, Logger: logger}
	ah := &handlers.AccountHandler{Accounts: accountRepo, Entries: ledgerRepo, Logger: logger}
	gh := &handlers.GuideHandler{Guides: guideRepo, Logger: logger}
	arth := &handlers.ArtifactHandler{Artifacts: artifactRepo, Logger: logger}

	billingHandler := billing.NewHandler(billing.NewProcessor(ledgerSvc, logger), logger)

	auth := middleware.JWTAuth(cfg.JWTSecret)

	mux.Handle("POST /v1/tasks", auth(http.HandlerFunc(th.CreateTask)))
	mux.Handle("GET /v1/tasks/{id}", auth(http.HandlerFunc(th.GetTask)))
	mux.Handle("GET /v1/tasks", auth(http.HandlerFunc(th.ListTasks)))

	mux.Handle("GET /v1/account/balance", auth(http.HandlerFunc(ah.GetBalance)))
	mux.Handle("GET /v1/account/ledger", auth(http.HandlerFunc(ah.GetLedger)))

	mux.Handle("POST /v1/guides", auth(http.HandlerFunc(gh.CreateGuide)))
	mux.Handle("GET /v1/guides/{id}", auth(http.HandlerFunc(gh.GetGuide)))
	mux.Handle("GET /v1/guides", auth(http.HandlerFunc(gh.ListGuides)))

	mux.Handle("GET /v1/artifacts/{id}", auth(http.HandlerFunc(arth.GetArtifact)))

	// Payment provider webhook (at-least-once delivery; crediting is idempotent)
	mux.HandleFunc("POST /v1/billing/events", billingHandler.HandleEvent)
}
