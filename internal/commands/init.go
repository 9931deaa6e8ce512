package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

// InitCommand returns the CLI command for initializing Farmboard
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize or update the Farmboard environment",
		Description: "Sets up the configuration directory with a default .env and a sample " +
			"missions.yaml. An existing .env is backed up, an existing catalog is kept. " +
			"The local database schema is brought up to date on every start.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-backup",
				Usage: "Overwrite an existing .env without keeping a dated copy",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}
			cfg := application.Config

			utils.PrintHeading("Initializing Farmboard")

			configDir := cfg.Dir()
			utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

			utils.PrintInfo("Extracting default configuration files")
			if err := config.SetupConfigDirectory(configDir, !c.Bool("no-backup")); err != nil {
				utils.PrintError(fmt.Sprintf("Failed to set up configuration files: %s", err))
				return fmt.Errorf("failed to set up configuration files: %w", err)
			}

			userID, err := application.Identity.UserID(c.Context)
			if err != nil {
				return fmt.Errorf("failed to resolve user id: %w", err)
			}
			clientName, err := application.Identity.ClientName(c.Context)
			if err != nil {
				return fmt.Errorf("failed to resolve client name: %w", err)
			}

			utils.PrintSuccess("Farmboard initialized successfully!")

			utils.PrintTreeList(color.YellowString("%s", configDir), []string{
				"Configuration file: " + filepath.Join(configDir, ".env"),
				"Mission catalog: " + cfg.Catalog.Path,
				"Database location: " + cfg.Database.Path,
				"Log file location: " + cfg.Logging.Output,
			})
			utils.PrintInfo("This client: " + color.CyanString(clientName) + " (" + userID + ")")
			fmt.Println("")
			utils.PrintSubHeading("Next steps")
			fmt.Print(utils.FormatList([]string{
				"Edit " + filepath.Base(cfg.Catalog.Path) + " to list the missions you track",
				"Run " + color.CyanString("farmboard board") + " to see your missions",
				"Run " + color.CyanString("farmboard serve") + " to host a remote progress store",
			}, ""))

			return nil
		},
	}
}
