// Package main is the entry point for the Entangler trapped-ion training
// service. It wires the quantum register simulator, the projective simulation
// agent, and the training run service behind an HTTP API, with run history
// persisted in SQLite.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/entangler/internal/config"
	"github.com/aristath/entangler/internal/database"
	"github.com/aristath/entangler/internal/events"
	"github.com/aristath/entangler/internal/modules/training"
	"github.com/aristath/entangler/internal/scheduler"
	"github.com/aristath/entangler/internal/server"
	"github.com/aristath/entangler/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Entangler")

	// Runs database holds training run history, per-episode statistics, and
	// trained agent snapshots.
	runsDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "runs.db"),
		Name: "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer runsDB.Close()

	runRepo := training.NewRunRepository(runsDB, log)
	if err := runRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runs schema")
	}

	// Anything still marked running at startup belongs to a previous process.
	if aborted, err := runRepo.AbortStaleRuns(0); err != nil {
		log.Error().Err(err).Msg("Failed to abort interrupted runs")
	} else if aborted > 0 {
		log.Warn().Int64("count", aborted).Msg("Aborted runs interrupted by previous shutdown")
	}

	eventBus := events.NewBus()
	trainingService := training.NewService(runRepo, eventBus, log)

	// Background maintenance
	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", scheduler.NewWALCheckpointJob(runsDB, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	if err := sched.AddJob("@daily", scheduler.NewStaleRunsJob(runRepo, runsDB, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register stale runs job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		RunsDB:          runsDB,
		TrainingService: trainingService,
		EventBus:        eventBus,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	sched.Stop()

	// Let in-flight training runs persist their final state.
	log.Info().Msg("Waiting for in-flight training runs")
	trainingService.Wait()

	log.Info().Msg("Entangler stopped")
}
