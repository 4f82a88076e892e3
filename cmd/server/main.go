// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/replenish/backend-go/internal/api"
	"github.com/andresuchdata/replenish/backend-go/internal/cache"
	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/service"
	"github.com/andresuchdata/replenish/backend-go/internal/storage"
	"github.com/andresuchdata/replenish/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetFormat(cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	var store storage.ObjectStorage
	if cfg.Storage.Endpoint != "" {
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		store = s3Client
	}

	var driveFiles drive.FileService
	if cfg.Drive.CredentialsJSON != "" {
		driveSvc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
		}
		driveFiles = driveSvc
	}

	costs, closeCosts, err := service.OpenCostRepository(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open supplier costs")
	}
	defer closeCosts()

	reportCache, err := cache.NewReportCache(ctx, cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Report cache unavailable, continuing without it")
		reportCache = cache.NewNoopReportCache()
	}
	defer reportCache.Close()

	source, err := service.NewThresholdSource(cfg.Thresholds, driveFiles, store)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Thresholds cannot be reloaded until a source is configured")
	}

	opts := service.OptionsFromConfig(cfg)
	opts.DriveFiles = driveFiles
	replenishmentService := service.NewReplenishmentService(source, costs, reportCache, opts)

	if source != nil {
		if _, err := replenishmentService.ReloadThresholds(ctx); err != nil {
			logger.Log.Error().Err(err).Str("source", source.Describe()).Msg("Initial threshold load failed")
		}
	}

	services := &api.Services{Replenishment: replenishmentService}
	if driveFiles != nil {
		services.Drive = drive.NewHandler(driveFiles, replenishmentService)
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
