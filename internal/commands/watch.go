package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tildaslashalef/farmboard/internal/app"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/tui"
	"github.com/tildaslashalef/farmboard/internal/utils"
	"github.com/urfave/cli/v2"
)

// WatchCommand returns the CLI command that keeps a live board open. The
// background sync and the catalog hot reload run until the user quits.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Open a live mission board that keeps progress in sync",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}
			cfg := application.Config

			cat, err := application.Catalog()
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to load mission catalog: %s", err))
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := application.StartBoard(ctx)
			if err != nil {
				return fmt.Errorf("failed to start progress service: %w", err)
			}

			var updates <-chan *catalog.Catalog
			if cfg.Catalog.Watch {
				watcher, err := catalog.NewWatcher(cfg.Catalog.Path, loggy.GetGlobalLogger())
				if err != nil {
					return fmt.Errorf("failed to watch mission catalog: %w", err)
				}
				if err := watcher.Start(); err != nil {
					return fmt.Errorf("failed to watch mission catalog: %w", err)
				}
				defer watcher.Stop()

				go func() {
					for err := range watcher.Errors() {
						loggy.Warn("Mission catalog reload failed, keeping previous version", "error", err)
					}
				}()
				updates = watcher.Updates()
			}

			return tui.Run(ctx, svc, cat, updates, cfg.Sync.PollInterval)
		},
	}
}
