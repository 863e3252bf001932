// Package app wires repositories, the forecasting core and the service layer
// for both the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/restock/internal/cache"
	"github.com/andresuchdata/restock/internal/config"
	"github.com/andresuchdata/restock/internal/drive"
	"github.com/andresuchdata/restock/internal/forecast"
	"github.com/andresuchdata/restock/internal/recommend"
	"github.com/andresuchdata/restock/internal/replenish"
	"github.com/andresuchdata/restock/internal/repository/postgres"
	"github.com/andresuchdata/restock/internal/service"
	"github.com/andresuchdata/restock/internal/storage"
	"github.com/rs/zerolog/log"
)

type App struct {
	DB            *postgres.DB
	Planner       *replenish.Planner
	Aggregator    *recommend.Aggregator
	Replenishment *service.ReplenishmentService
	Importer      *drive.SalesImporter
}

// New builds the object graph on an open database. Optional backends (Redis,
// object storage, Drive) degrade to disabled when not configured.
func New(ctx context.Context, cfg *config.Config, db *postgres.DB) (*App, error) {
	catalog := postgres.NewProductRepository(db)
	history := postgres.NewSalesHistoryRepository(db)
	rules := postgres.NewReorderRuleRepository(db)
	rollups := postgres.NewSalesRollupRepository(db)

	planner := replenish.NewPlanner(
		forecast.NewEngine(forecast.DefaultWindow),
		catalog, history, rules,
		cfg.Forecast.LookbackDays,
	)
	aggregator := recommend.NewAggregator(
		planner, catalog,
		cfg.Forecast.Workers,
		time.Duration(cfg.Forecast.ItemTimeoutSeconds)*time.Second,
	)

	recCache, err := cache.NewRecommendationCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("recommendation cache unavailable, continuing without cache")
		recCache = cache.NewNoopRecommendationCache()
	}

	var store storage.ObjectStorage
	if minioClient, err := storage.NewMinioClient(cfg.Storage); err == nil {
		store = minioClient
	} else if !errors.Is(err, storage.ErrNotConfigured) {
		return nil, err
	}

	var downloader *drive.Downloader
	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		downloader = drive.NewDownloader(driveService)
	}

	return &App{
		DB:            db,
		Planner:       planner,
		Aggregator:    aggregator,
		Replenishment: service.NewReplenishmentService(planner, aggregator, rules, recCache, store, cfg.Forecast.DefaultLimit),
		Importer:      drive.NewSalesImporter(downloader, rollups),
	}, nil
}

// HealthCheck pings the database.
func (a *App) HealthCheck(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}
