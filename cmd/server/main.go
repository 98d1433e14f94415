package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gigboard/gigboard/internal/api"
	"github.com/gigboard/gigboard/internal/auth"
	"github.com/gigboard/gigboard/internal/catalog"
	"github.com/gigboard/gigboard/internal/config"
	"github.com/gigboard/gigboard/internal/database"
	"github.com/gigboard/gigboard/internal/enrichment"
	"github.com/gigboard/gigboard/internal/ingestion"
	"github.com/gigboard/gigboard/internal/logging"
	"github.com/gigboard/gigboard/internal/metrics"
	"github.com/gigboard/gigboard/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting gigboard")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConnections = cfg.Database.MaxConnections

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	venueRepo := database.NewPostgresVenueRepository(db)
	performerRepo := database.NewPostgresPerformerRepository(db)
	eventRepo := database.NewPostgresEventRepository(db)
	linkRepo := database.NewPostgresSourceLinkRepository(db)
	sourceRepo := database.NewPostgresSourceRepository(db)
	runRepo := database.NewPostgresRunRepository(db)

	// Consolidation engine
	geocoder := enrichment.NewCityCenterGeocoder(nil, logger)
	venueDedup := catalog.NewVenueDeduplicator(venueRepo, geocoder, cfg.Engine.VenueRadiusMeters, logger)
	performerDedup := catalog.NewPerformerDeduplicator(performerRepo)
	freshness := catalog.NewFreshnessPredictor(
		linkRepo, eventRepo, venueRepo,
		cfg.Engine.FreshnessWindow, cfg.Engine.SimilarityThreshold, cfg.Engine.VenueRadiusMeters, logger,
	)
	consolidator := catalog.NewEventConsolidator(eventRepo, linkRepo, cfg.Engine.SimilarityThreshold, logger)
	engine := catalog.NewEngine(sourceRepo, venueDedup, performerDedup, freshness, consolidator, logger)

	// Optional LLM interpreter for prose date strings
	interpreterConfig := enrichment.InterpreterConfigFromEnv()
	if interpreterConfig.Enabled() {
		interpreter := enrichment.NewOpenAIDateInterpreter(interpreterConfig, logger)
		engine.SetDateRefiner(enrichment.NewCandidateDateRefiner(interpreter))
		logger.Info("date interpreter enabled", "model", interpreterConfig.Model)
	} else {
		logger.Info("date interpreter disabled, prose dates stay unknown")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Pipeline. Polled connectors register here; push sources use the
	// ingest endpoint and share the same run bookkeeping.
	pipelineConfig := ingestion.DefaultPipelineConfig()
	pipelineConfig.PollInterval = cfg.Pipeline.PollInterval
	pipelineConfig.ConcurrentSources = cfg.Pipeline.ConcurrentSources
	pipelineConfig.CandidateWorkers = cfg.Pipeline.CandidateWorkers

	var connectors []ingestion.Connector
	pipeline := ingestion.NewPipeline(connectors, engine, runRepo, collector, logger, pipelineConfig)

	if len(connectors) > 0 {
		go func() {
			if err := pipeline.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("pipeline stopped", "error", err)
			}
		}()
	}

	// HTTP surface
	authConfig := auth.LoadConfigFromEnv()
	if cfg.Auth.JWTSecret != "" {
		authConfig.JWTSecret = cfg.Auth.JWTSecret
	}
	authConfig.TokenDuration = cfg.Auth.TokenExpiry
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	api.SetupRoutes(mux, db, eventRepo, venueRepo, sourceRepo, runRepo, sourceRepo, pipeline, authConfig, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gigboard stopped")
}
