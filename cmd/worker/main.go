package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studykit-worker/internal/api"
	"studykit-worker/internal/config"
	"studykit-worker/internal/database"
	"studykit-worker/internal/extraction"
	"studykit-worker/internal/generation"
	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/internal/review"
	"studykit-worker/internal/storage"
	"studykit-worker/internal/study"
	"studykit-worker/internal/validation"
	"studykit-worker/internal/worker"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.Load()

	logg, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logg.Sync()

	storageBackend, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logg.Fatal("Failed to initialize storage", "error", err)
	}
	storageService := storage.NewService(storageBackend)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logg.Fatal("Failed to connect to database", "error", err)
	}

	studyRepo := study.NewRepository(db)
	jobService := jobs.NewJobService(jobs.NewJobRepository(db), studyRepo, logg)
	reviewService := review.NewService(db, logg)

	invoker, err := generation.NewLLMInvoker(cfg.Generation, logg)
	if err != nil {
		logg.Fatal("Failed to initialize generation invoker", "error", err)
	}

	extractor := extraction.NewExtractor(storageService, logg)
	persister := study.NewPersister(studyRepo, logg, cfg.Worker.BatchSize)
	pipeline := worker.NewPipeline(
		jobService, extractor, invoker, persister, studyRepo, logg,
		cfg.Worker.CorpusBudget, cfg.Worker.ProgressTimeout)

	poolConfig := worker.DefaultPoolConfig()
	poolConfig.WorkerCount = cfg.Worker.WorkerCount
	poolConfig.PollBase = cfg.Worker.PollBase
	poolConfig.PollMax = cfg.Worker.PollMax
	poolConfig.BackoffFactor = cfg.Worker.BackoffFactor
	poolConfig.JobTimeout = cfg.JobTimeout
	pool := worker.NewPool(jobService, pipeline, poolConfig, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		logg.Fatal("Failed to start worker pool", "error", err)
	}

	cleanupService := jobs.NewCleanupService(jobService, logg, cfg.CleanupInterval, cfg.JobMaxAge)
	if err := cleanupService.Start(); err != nil {
		logg.Fatal("Failed to start cleanup service", "error", err)
	}

	validator := validation.NewAPIValidator(validation.DefaultValidationConfig())
	router := api.SetupRouter(jobService, reviewService, storageService, validator, pool, logg)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	logg.Info("Starting studykit-worker",
		"port", cfg.Port,
		"workers", cfg.Worker.WorkerCount,
		"storage_type", cfg.Storage.Type,
		"llm_provider", cfg.Generation.Provider,
		"llm_model", cfg.Generation.Model)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logg.Fatal("Server failed", "error", err)
	case sig := <-quit:
		logg.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("HTTP shutdown failed", "error", err)
	}

	cleanupService.Stop()
	if err := pool.Stop(); err != nil {
		logg.Error("Worker pool shutdown failed", "error", err)
	}
	logg.Info("Shutdown complete")
}
