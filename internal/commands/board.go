package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/board"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/progress"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

// BoardCommand returns the CLI command that renders the mission board
func BoardCommand() *cli.Command {
	return &cli.Command{
		Name:    "board",
		Aliases: []string{"b"},
		Usage:   "Show every mission with its progress, grouped by network",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Only show the network with this key",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			cat, err := application.Catalog()
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to load mission catalog: %s", err))
				return err
			}

			svc, err := application.StartBoard(c.Context)
			if err != nil {
				return fmt.Errorf("failed to start progress service: %w", err)
			}

			renderBoard(cat, svc, c.String("network"))
			return nil
		},
	}
}

func renderBoard(cat *catalog.Catalog, svc *board.Service, onlyNetwork string) {
	shown := 0
	completed := 0
	for _, n := range cat.Networks {
		if onlyNetwork != "" && n.Key != onlyNetwork {
			continue
		}
		shown++

		snapshot := svc.Snapshot()
		rows := make([][]string, 0, len(n.Missions))
		for _, m := range n.Missions {
			status := svc.MissionStatus(m.ID)
			if status == progress.StatusCompleted {
				completed++
			}
			rows = append(rows, []string{
				m.ID,
				utils.Truncate(m.Label, 40),
				m.Difficulty,
				utils.StatusColors(string(status)).Sprint(string(status)),
				strconv.Itoa(svc.SubmissionCount(m.ID)),
				utils.ShortHash(snapshot.Missions[m.ID].TxHash),
			})
		}

		opts := utils.DefaultTableOptions()
		opts.Title = n.Label
		if n.Explorer != "" {
			opts.Title = fmt.Sprintf("%s (%s)", n.Label, n.Explorer)
		}
		utils.PrintTable([]string{"ID", "Mission", "Difficulty", "Status", "Logged", "Last Tx"}, rows, opts)
		fmt.Println()
	}

	if shown == 0 {
		utils.PrintWarning(fmt.Sprintf("No network named %q in the catalog", onlyNetwork))
		return
	}

	printSyncFooter(svc)
	utils.PrintKeyValue("Completed", fmt.Sprintf("%d of %d missions", completed, cat.MissionCount()))
}

func printSyncFooter(svc *board.Service) {
	utils.PrintKeyValue("User", svc.UserID())
	if pending := svc.PendingCount(); pending > 0 {
		utils.PrintKeyValueWithColor("Pending sync", strconv.Itoa(pending), utils.Theme.Warning)
	} else {
		utils.PrintKeyValue("Pending sync", color.GreenString("none"))
	}
}
