package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/restock/internal/app"
	"github.com/andresuchdata/restock/internal/config"
	"github.com/andresuchdata/restock/internal/repository/postgres"
	"github.com/andresuchdata/restock/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

type contextKey string

const appKey contextKey = "app"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newOwnerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "owner",
		Usage:    "Owner (business) id",
		Required: true,
		EnvVars:  []string{"RESTOCK_OWNER_ID"},
	}
}

// initApp opens the database over pgx and stores the wired app in the context.
func initApp(c *cli.Context) error {
	cfg := config.Load()
	logger.Configure(c.String("log-level"), "debug")

	db, err := postgres.Connect(c.Context, "pgx", c.String("db-url"))
	if err != nil {
		return err
	}

	application, err := app.New(c.Context, cfg, db)
	if err != nil {
		db.Close()
		return err
	}

	c.Context = context.WithValue(c.Context, appKey, application)
	return nil
}

func closeApp(c *cli.Context) error {
	if application, ok := c.Context.Value(appKey).(*app.App); ok && application != nil {
		return application.DB.Close()
	}
	return nil
}

func appFrom(c *cli.Context) (*app.App, error) {
	application, ok := c.Context.Value(appKey).(*app.App)
	if !ok || application == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return application, nil
}

func main() {
	cliApp := &cli.App{
		Name:  "restock",
		Usage: "Stock forecasting and replenishment for small businesses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: commands(),
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("restock failed")
	}
}
