package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/yakusoku/internal/daemon"
	"github.com/harunnryd/yakusoku/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the enforcement daemon",
	Long:  `Starts the long-running process that tracks active agreements, fires warnings, and enforces violations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		storeComp := components.NewStoreComponent(cfg)
		notifierComp := components.NewNotifierComponent(&cfg.Notify)
		trackerComp := components.NewTrackerComponent(cfg, storeComp, notifierComp)

		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(notifierComp)
		daemonMgr.AddComponent(trackerComp)

		slog.Info("Yakusoku daemon starting up...", "workspace", cfg.Daemon.WorkspacePath)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal is a graceful shutdown for the CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Yakusoku daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
