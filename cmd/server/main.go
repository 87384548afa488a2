// Package main implements the entry point for the skim-api ingestion
// service: it syncs stories from the content source, enriches them with
// model-generated summaries and tags, and serves the monitoring API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/skimapp/skim-api/internal/api"
	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/hn"
	"github.com/skimapp/skim-api/internal/job"
	"github.com/skimapp/skim-api/internal/platform/gemini"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/platform/postgres"
	"github.com/skimapp/skim-api/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	logg.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"sync_interval", cfg.Sync.Interval,
		"backfill_interval", cfg.Backfill.Interval)

	ctx := context.Background()

	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logg.Error("failed to close database", "error", err)
		}
	}()
	if err := migrations.Up(ctx, db); err != nil {
		return err
	}
	logg.Info("database ready")

	storyStore := postgres.NewStoryStore(db)
	summaryStore := postgres.NewSummaryStore(db)
	tagStore := postgres.NewTagStore(db)
	progressStore := postgres.NewProgressStore(db)
	proposalStore := postgres.NewProposalStore(db)
	ledger := postgres.NewLedgerStore(db)

	source := hn.NewClient(cfg.Source, logg)
	enricher, err := gemini.NewGeminiEnricher(ctx, logg, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create enricher: %w", err)
	}
	stage := job.NewEnrichStage(enricher, storyStore, summaryStore, tagStore,
		cfg.Enrich.BatchSize, cfg.Recovery.MaxAttempts)

	scheduler := job.NewScheduler(logg, progressStore)
	scheduler.Register(job.NewContinuousSync(source, storyStore, progressStore, ledger, stage, cfg.Sync), cfg.Sync.Interval)
	scheduler.Register(job.NewBackfill(source, storyStore, progressStore, ledger, stage, cfg.Backfill), cfg.Backfill.Interval)
	scheduler.Register(job.NewRecoverySweep(storyStore, progressStore, stage, cfg.Recovery), cfg.Recovery.Interval)
	scheduler.Register(job.NewTaxonomyAgent(tagStore, proposalStore, cfg.Agent), cfg.Agent.Interval)
	scheduler.Start()
	logg.Info("scheduler started")

	router := api.NewRouter(
		api.NewStatusHandler(storyStore, progressStore, ledger, logg),
		api.NewProposalHandler(proposalStore, logg),
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-stop:
		logg.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("http server shutdown failed", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logg.Error("scheduler shutdown timed out", "error", err)
	}
	logg.Info("shutdown complete")
	return nil
}
