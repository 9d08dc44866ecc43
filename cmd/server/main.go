// Package main is the entrypoint for the Freely API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freelyhq/freely-api/internal/ai/anthropic"
	"github.com/freelyhq/freely-api/internal/ai/mock"
	"github.com/freelyhq/freely-api/internal/ai/openai"
	"github.com/freelyhq/freely-api/internal/api"
	"github.com/freelyhq/freely-api/internal/api/handler"
	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/cache"
	"github.com/freelyhq/freely-api/internal/config"
	"github.com/freelyhq/freely-api/internal/docs"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := newAIProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Create store and services
	pgStore := store.NewPostgresStore(pool)
	docService := docs.NewService(pgStore, redisCache, aiProvider, cfg.AI.InferenceTimeout)

	// 7. Build router with dependencies
	verifier := mw.NewFirebaseVerifier(cfg.Auth, redisCache)
	auth := mw.NewAuth(pgStore, verifier)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),
		MeHandler:     handler.NewMeHandler(),

		CreateRiskAnalysis: handler.NewCreateRiskAnalysisHandler(docService, cfg.Upload.MaxFileBytes),
		ListRiskAnalyses:   handler.NewListRiskAnalysesHandler(docService),
		GetRiskAnalysis:    handler.NewGetRiskAnalysisHandler(docService),
		RiskAnalysisStatus: handler.NewRiskAnalysisStatusHandler(docService),
		DeleteRiskAnalysis: handler.NewDeleteRiskAnalysisHandler(docService),
		GenerateProposal:   handler.NewGenerateProposalHandler(docService),

		CreateProposal:     handler.NewCreateProposalHandler(docService, cfg.Upload.MaxFileBytes),
		ListProposals:      handler.NewListProposalsHandler(docService),
		GetProposal:        handler.NewGetProposalHandler(docService),
		ProposalStatus:     handler.NewProposalStatusHandler(docService),
		DeleteProposal:     handler.NewDeleteProposalHandler(docService),
		SaveProposal:       handler.NewSaveProposalHandler(docService),
		UpdateProposal:     handler.NewUpdateProposalHandler(docService, cfg.Upload.MaxFileBytes),
		ProposalHistory:    handler.NewProposalHistoryHandler(docService),
		RestoreProposal:    handler.NewRestoreProposalHandler(docService),
		GenerateRiskReport: handler.NewGenerateRiskReportHandler(docService),

		CreateToken: handler.NewCreateTokenHandler(pgStore),
		ListTokens:  handler.NewListTokensHandler(pgStore),
		RevokeToken: handler.NewRevokeTokenHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newAIProvider constructs the configured AI provider. Called once at startup.
func newAIProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
