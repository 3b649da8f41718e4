package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/alert"
	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/archive"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/ratelimit"
	"github.com/pulsewatch/pulsewatch/internal/store/postgres"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get database connection", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	st := postgres.New(db)

	var arc archive.Store
	var pruner *archive.Pruner
	if cfg.ArchiveEnabled() {
		arc, err = archive.NewS3Store(cfg.S3, logger)
		if err != nil {
			logger.Fatal("failed to initialize object storage", zap.Error(err))
		}
		pruner = archive.NewPruner(arc, 2, 256, logger)
		defer pruner.Stop()
	}

	ingestor := ingest.New(st, arc, pruner, ingest.Config{
		InlineBodyLimit: cfg.InlineBodyLimit,
		PingLogLimit:    cfg.PingLogLimit,
	}, logger)

	limiter := ratelimit.New(st, cfg.SecretKey)
	alerter := alert.New(st, transport.Deps{Cfg: cfg, Limiter: limiter}, logger)

	scheduler := jobs.NewScheduler(st, alerter, logger)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(cfg, st, ingestor, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
