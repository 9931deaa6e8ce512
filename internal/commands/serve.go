package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/migrations"
	"github.com/tildaslashalef/farmboard/internal/server"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

// ServeCommand returns the CLI command that runs the remote progress store
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the remote progress store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides FARMBOARD_SERVER_ADDR)",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}
			cfg := application.Config
			if addr := c.String("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			db, err := database.Open(serverDatabaseConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to open server database: %w", err)
			}
			defer db.Close()

			if err := database.RunMigrations(db, migrations.Server); err != nil {
				return fmt.Errorf("failed to apply server migrations: %w", err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := loggy.GetGlobalLogger()
			srv := server.New(server.NewSQLRepository(db, logger), cfg.Server.Environment, logger)

			utils.PrintInfo("Serving progress store on " + color.CyanString(cfg.Server.Addr))
			utils.PrintInfo("Database: " + color.YellowString("%s", cfg.Server.DatabasePath))
			if err := srv.Run(ctx, cfg.Server); err != nil {
				utils.PrintError(fmt.Sprintf("Server stopped: %s", err))
				return err
			}
			utils.PrintSuccess("Server stopped")
			return nil
		},
	}
}
