package commands

import (
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/migrations"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

var serverFlag = &cli.BoolFlag{
	Name:  "server",
	Usage: "Target the remote store database instead of the local one",
}

// MigrateCommand returns the CLI command for database migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Manage database migrations",
		Hidden: true,
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Flags: []cli.Flag{serverFlag},
				Action: func(c *cli.Context) error {
					return withMigrationTarget(c, func(db *sql.DB, set migrations.Set) error {
						utils.PrintInfo(fmt.Sprintf("Applying embedded %s migrations", set))
						if err := database.RunMigrations(db, set); err != nil {
							utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
							return fmt.Errorf("failed to apply migrations: %w", err)
						}
						utils.PrintSuccess("Database schema is up-to-date")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "Revert the last migration",
				Flags: []cli.Flag{
					serverFlag,
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert (default: 1)",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("steps")
					if steps < 1 {
						return fmt.Errorf("steps must be at least 1")
					}
					return withMigrationTarget(c, func(db *sql.DB, set migrations.Set) error {
						utils.PrintWarning(fmt.Sprintf("Reverting %d %s migration(s)", steps, set))
						if err := database.RevertMigrations(db, set, steps); err != nil {
							utils.PrintError(fmt.Sprintf("Failed to revert migrations: %s", err))
							return fmt.Errorf("failed to revert migrations: %w", err)
						}
						utils.PrintSuccess(fmt.Sprintf("Reverted %d migration(s)", steps))
						return nil
					})
				},
			},
		},
	}
}

// withMigrationTarget runs fn against the local database or, with --server,
// the remote store database
func withMigrationTarget(c *cli.Context, fn func(*sql.DB, migrations.Set) error) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if !c.Bool("server") {
		return fn(application.DB, migrations.Client)
	}

	db, err := database.Open(serverDatabaseConfig(application.Config))
	if err != nil {
		return fmt.Errorf("failed to open server database: %w", err)
	}
	defer db.Close()
	return fn(db, migrations.Server)
}

// serverDatabaseConfig reuses the local tuning with the server's own file
func serverDatabaseConfig(cfg *config.Config) config.DatabaseConfig {
	dbCfg := cfg.Database
	dbCfg.Path = cfg.Server.DatabasePath
	return dbCfg
}
