package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/restock/internal/api"
	"github.com/andresuchdata/restock/internal/app"
	"github.com/andresuchdata/restock/internal/config"
	"github.com/andresuchdata/restock/internal/repository/postgres"
	"github.com/andresuchdata/restock/internal/telemetry"
	"github.com/andresuchdata/restock/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.Server.LogLevel, cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Log.Error().Err(err).Msg("Error shutting down telemetry")
		}
	}()

	db, err := postgres.Connect(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	application, err := app.New(ctx, cfg, db)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	routerOpts := api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Telemetry.Enabled {
		routerOpts.ServiceName = cfg.Telemetry.ServiceName
	}
	router := api.NewRouter(&api.Services{
		Replenishment: application.Replenishment,
		HealthCheck:   application.HealthCheck,
	}, routerOpts)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

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
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
