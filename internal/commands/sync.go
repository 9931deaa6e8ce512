package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	farmsync "github.com/tildaslashalef/farmboard/internal/sync"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

// SyncCommand returns the CLI command that drains the pending queue now
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Push pending progress to the remote store",
		Description: "Probes the remote store and, when it is reachable, replays queued updates in order.",
		Action:      syncAction,
	}
}

func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	loggy.Info("Starting manual sync")

	svc, err := application.StartBoard(c.Context)
	if err != nil {
		return fmt.Errorf("failed to start progress service: %w", err)
	}

	before := svc.PendingCount()
	online, err := svc.ManualSync(c.Context)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Sync failed: %s", err))
		return err
	}
	if !online {
		utils.PrintWarning(fmt.Sprintf("Remote store at %s is offline; %d update(s) stay queued", application.Config.Remote.URL, before))
		return nil
	}

	after := svc.PendingCount()
	switch {
	case before == 0:
		utils.PrintSuccess("Nothing to sync, everything is up to date")
	case after == 0:
		utils.PrintSuccess(fmt.Sprintf("Synced %d pending update(s)", before))
	default:
		utils.PrintWarning(fmt.Sprintf("Synced %d of %d update(s); %d remain queued", before-after, before, after))
	}
	return nil
}

// StatusCommand returns the CLI command that reports sync health
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show this client, the remote store and the pending queue",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "logs",
				Usage: "Number of recent sync attempts to list",
				Value: 10,
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	userID, err := application.Identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve user id: %w", err)
	}
	clientName, err := application.Identity.ClientName(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve client name: %w", err)
	}

	utils.PrintHeading("Farmboard status")
	utils.PrintKeyValueWithColor("Client", clientName, utils.Theme.Accent)
	utils.PrintKeyValue("User ID", userID)
	utils.PrintDivider()

	utils.PrintSubHeading("Remote")
	utils.PrintKeyValue("Remote store", application.Config.Remote.URL)
	if application.Engine.Probe(ctx) {
		utils.PrintKeyValue("Remote status", color.GreenString("online"))
	} else {
		utils.PrintKeyValue("Remote status", color.RedString("offline"))
	}

	utils.PrintDivider()

	utils.PrintSubHeading("Queue")
	pending, err := application.Engine.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending queue: %w", err)
	}
	utils.PrintKeyValue("Pending sync", strconv.Itoa(len(pending)))

	if len(pending) > 0 {
		rows := make([][]string, 0, len(pending))
		for _, entry := range pending {
			rows = append(rows, []string{
				entry.MissionID,
				string(entry.Progress.Status),
				entry.Timestamp.Local().Format(time.DateTime),
			})
		}
		opts := utils.DefaultTableOptions()
		opts.Title = "Pending"
		utils.PrintTable([]string{"Mission", "Status", "Queued"}, rows, opts)
	}

	logs, err := application.Engine.RecentLogs(ctx, c.Int("logs"))
	if err != nil {
		utils.PrintWarning(fmt.Sprintf("Failed to read sync log: %s", err))
		return nil
	}
	if len(logs) == 0 {
		return nil
	}

	opts := utils.DefaultTableOptions()
	opts.Title = "Recent sync attempts"
	utils.PrintTable([]string{"When", "Operation", "Mission", "Result", "Duration"}, syncLogRows(logs), opts)
	return nil
}

func syncLogRows(logs []*farmsync.SyncLog) [][]string {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		result := color.GreenString("ok")
		if !l.Success {
			result = color.RedString("%s: %s", l.ErrorType, utils.Truncate(l.ErrorMessage, 40))
		} else if l.ItemsSynced > 1 {
			result = color.GreenString("ok (%d)", l.ItemsSynced)
		}
		rows = append(rows, []string{
			l.StartedAt.Local().Format(time.DateTime),
			string(l.Operation),
			l.MissionID,
			result,
			l.Duration().Round(time.Millisecond).String(),
		})
	}
	return rows
}
