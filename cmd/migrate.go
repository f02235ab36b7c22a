package cmd

import (
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/logger"
	"github.com/spf13/cobra"
)

var resetTables bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the market tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if resetTables {
			slog.Warn("Emptying market tables", slog.String("type", "sys"))
			if err := db.ResetAppTables(ctx); err != nil {
				return err
			}
		}
		if err := db.InitializeSchema(ctx); err != nil {
			return err
		}

		logger.LogSystem("Migration completed successfully", slog.Bool("reset", resetTables))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&resetTables, "reset", false, "empty all market tables first")
}
