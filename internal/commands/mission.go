package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/board"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/utils"
	farmsync "github.com/tildaslashalef/farmboard/internal/sync"
	"github.com/urfave/cli/v2"
)

// MissionCommand returns the CLI command for inspecting and starting missions
func MissionCommand() *cli.Command {
	return &cli.Command{
		Name:    "mission",
		Aliases: []string{"m"},
		Usage:   "Inspect or start a mission",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show mission details and logged completions",
				ArgsUsage: "<mission-id>",
				Action: func(c *cli.Context) error {
					application, ref, err := resolveMission(c)
					if err != nil {
						return err
					}
					svc, err := application.StartBoard(c.Context)
					if err != nil {
						return fmt.Errorf("failed to start progress service: %w", err)
					}

					fmt.Print(utils.RenderMarkdown(missionMarkdown(ref), 100))
					printMissionProgress(svc, ref.Mission.ID)
					return nil
				},
			},
			{
				Name:      "start",
				Usage:     "Mark a mission as in progress",
				ArgsUsage: "<mission-id>",
				Action: func(c *cli.Context) error {
					application, ref, err := resolveMission(c)
					if err != nil {
						return err
					}
					svc, err := application.StartBoard(c.Context)
					if err != nil {
						return fmt.Errorf("failed to start progress service: %w", err)
					}

					res, err := svc.StartMission(c.Context, ref.Mission.ID)
					if err != nil {
						utils.PrintError(fmt.Sprintf("Failed to start mission: %s", err))
						return err
					}
					reportResult(fmt.Sprintf("Mission %s is %s", color.CyanString(ref.Mission.ID), svc.MissionStatus(ref.Mission.ID)), res)
					return nil
				},
			},
		},
	}
}

// LogCommand returns the CLI command for logging a completed mission
func LogCommand() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Log a completion with its transaction evidence",
		ArgsUsage: "<mission-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tx",
				Usage: "Transaction hash (comma separated when the mission allows several)",
			},
			&cli.StringFlag{
				Name:  "explorer",
				Usage: "Block explorer URL of the transaction",
			},
			&cli.StringFlag{
				Name:  "notes",
				Usage: "Free-form notes",
			},
		},
		Action: func(c *cli.Context) error {
			application, ref, err := resolveMission(c)
			if err != nil {
				return err
			}

			txHash, err := ref.Mission.CheckEvidence(c.String("tx"), c.String("explorer"))
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}

			svc, err := application.StartBoard(c.Context)
			if err != nil {
				return fmt.Errorf("failed to start progress service: %w", err)
			}

			res, err := svc.LogCompletion(c.Context, ref.Mission.ID, txHash, strings.TrimSpace(c.String("explorer")), c.String("notes"))
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to log completion: %s", err))
				return err
			}
			reportResult(fmt.Sprintf("Logged completion #%d of %s", svc.SubmissionCount(ref.Mission.ID), color.CyanString(ref.Mission.ID)), res)
			return nil
		},
	}
}

// ResetCommand returns the CLI command that clears a mission's progress
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "Clear all progress of a mission",
		ArgsUsage: "<mission-id>",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}
			missionID := c.Args().First()
			if missionID == "" {
				return fmt.Errorf("mission id is required")
			}

			svc, err := application.StartBoard(c.Context)
			if err != nil {
				return fmt.Errorf("failed to start progress service: %w", err)
			}

			res, err := svc.DeleteProgress(c.Context, missionID)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to reset mission: %s", err))
				return err
			}
			if res.Synced {
				utils.PrintSuccess(fmt.Sprintf("Progress of %s cleared", color.CyanString(missionID)))
			} else {
				// deletes are not queued, so the remote copy may come back on the next start
				utils.PrintWarning(fmt.Sprintf("Progress of %s cleared locally; the remote store could not be updated", missionID))
			}
			return nil
		},
	}
}

// resolveMission looks up the first argument in the catalog
func resolveMission(c *cli.Context) (*app.App, catalog.Ref, error) {
	application, err := app.FromContext(c)
	if err != nil {
		return nil, catalog.Ref{}, err
	}

	missionID := c.Args().First()
	if missionID == "" {
		return nil, catalog.Ref{}, fmt.Errorf("mission id is required")
	}

	cat, err := application.Catalog()
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to load mission catalog: %s", err))
		return nil, catalog.Ref{}, err
	}

	ref, ok := cat.Lookup(missionID)
	if !ok {
		return nil, catalog.Ref{}, fmt.Errorf("mission %q is not in the catalog", missionID)
	}
	return application, ref, nil
}

func missionMarkdown(ref catalog.Ref) string {
	m := ref.Mission
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.Label)

	badges := []string{"**" + ref.Network.Label + "**"}
	if m.Difficulty != "" {
		badges = append(badges, "difficulty: "+m.Difficulty)
	}
	if m.Meta.RecommendedFrequency != "" {
		badges = append(badges, "frequency: "+m.Meta.RecommendedFrequency)
	}
	b.WriteString(strings.Join(badges, " · ") + "\n\n")

	if m.Description != "" {
		b.WriteString(m.Description + "\n\n")
	}
	if m.Goal != "" {
		fmt.Fprintf(&b, "## Goal\n\n> %s\n\n", m.Goal)
	}
	if len(m.SuggestedProtocols) > 0 {
		b.WriteString("## Suggested Protocols\n\n")
		for _, p := range m.SuggestedProtocols {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	if len(m.Steps) > 0 {
		b.WriteString("## Steps\n\n")
		for i, s := range m.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}
	if ref.Network.Explorer != "" {
		fmt.Fprintf(&b, "## Network Explorer\n\n%s\n\n", ref.Network.Explorer)
	}
	if m.Logging.MultipleTxsAllowed() {
		b.WriteString("_This mission may require multiple transactions; pass them comma separated._\n")
	}
	return b.String()
}

func printMissionProgress(svc *board.Service, missionID string) {
	status := svc.MissionStatus(missionID)
	utils.PrintKeyValueWithColor("Status", string(status), utils.StatusColors(string(status)))

	mp, ok := svc.Snapshot().Missions[missionID]
	if !ok || len(mp.Submissions) == 0 {
		utils.PrintInfo("No completions logged yet")
		return
	}

	rows := make([][]string, 0, len(mp.Submissions))
	for i, sub := range mp.Submissions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			utils.FormatTime(&sub.Timestamp),
			sub.TxHash,
			sub.ExplorerURL,
			utils.Truncate(sub.Notes, 30),
		})
	}
	opts := utils.DefaultTableOptions()
	opts.Title = "Submissions"
	utils.PrintTable([]string{"#", "When", "Tx", "Explorer", "Notes"}, rows, opts)
}

func reportResult(message string, res farmsync.Result) {
	utils.PrintSuccess(message)
	if !res.Synced {
		utils.PrintWarning("Saved locally, will sync when the remote store is reachable")
	}
}

