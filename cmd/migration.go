package cmd

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	coreDB "github.com/eduzayn/educhat/core/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	Run: func(_ *cobra.Command, _ []string) {
		defer StopApp()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := coreDB.Migrate(ctx, migrators...); err != nil {
			logrus.Fatalf("[MIGRATION] %v", err)
		}
		logrus.Infof("[MIGRATION] %s schema is up to date", cfg.Database.Driver)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale memory entries once and exit",
	Run: func(_ *cobra.Command, _ []string) {
		defer StopApp()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := memoryService.Sweep(ctx)
		if err != nil {
			logrus.Fatalf("[MEMORY] Sweep failed: %v", err)
		}
		logrus.Infof("[MEMORY] Deactivated %s expired entries", humanize.Comma(n))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, sweepCmd)
}
