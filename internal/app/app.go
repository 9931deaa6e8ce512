// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/tildaslashalef/farmboard/internal/board"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/localstore"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/migrations"
	"github.com/tildaslashalef/farmboard/internal/remote"
	farmsync "github.com/tildaslashalef/farmboard/internal/sync"
	"github.com/urfave/cli/v2"
)

// App represents the application instance with its dependencies
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Identity *localstore.Identity
	Engine   *farmsync.Engine
	Board    *board.Service

	logger    *loggy.Logger
	startOnce sync.Once
	startErr  error
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// the local store is useless without its schema, so keep it current
	if err := database.RunMigrations(db, migrations.Client); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	app := initServices(cfg, db)

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and validates the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices wires the local store, remote gateway, sync engine and
// progress facade
func initServices(cfg *config.Config, db *sql.DB) *App {
	logger := loggy.GetGlobalLogger()

	store := localstore.NewStore(db)
	identity := localstore.NewIdentity(store)
	engine := farmsync.NewEngine(
		localstore.NewCache(store),
		localstore.NewQueue(store),
		remote.NewClient(cfg.Remote, logger),
		farmsync.NewSQLRepository(db, cfg.Sync.LogRetention, logger),
		cfg.Remote,
		logger,
	)

	return &App{
		Config:   cfg,
		DB:       db,
		Identity: identity,
		Engine:   engine,
		Board:    board.New(engine, identity, cfg.Sync, logger),
		logger:   logger,
	}
}

// StartBoard starts the progress facade on first use. Commands that only
// read configuration never touch the remote store.
func (app *App) StartBoard(ctx context.Context) (*board.Service, error) {
	app.startOnce.Do(func() {
		app.startErr = app.Board.Start(ctx)
	})
	if app.startErr != nil {
		return nil, app.startErr
	}
	return app.Board, nil
}

// Catalog loads the mission catalog from the configured path
func (app *App) Catalog() (*catalog.Catalog, error) {
	c, err := catalog.Load(app.Config.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'farmboard init' to create a sample catalog)", err)
	}
	return c, nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if err := app.Board.Close(); err != nil {
		loggy.Error("Error stopping progress service", "error", err)
	}

	if err := app.DB.Close(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return app.logger.Close()
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
