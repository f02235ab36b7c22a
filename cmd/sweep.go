package cmd

import (
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/logger"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Resolve auctions whose deadline has passed",
	Long: "Runs one pass of the deadline sweep. Bidless auctions are ended and owners of\n" +
		"auctions with bids are asked to pick a buyer, exactly as the running bot does.",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeDB, err := openBot(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := auction.NewScheduler(b.Engine, b.Cfg.Auction.SweepInterval.Duration).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		logger.LogSystem("Sweep finished", slog.Int("resolved", n))
		return nil
	},
}

var expireDraftsCmd = &cobra.Command{
	Use:   "expire-drafts",
	Short: "Expire drafts that were never published",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeDB, err := openBot(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := b.Drafts.ExpireStale(cmd.Context())
		if err != nil {
			return err
		}
		logger.LogSystem("Draft expiry finished", slog.Int("expired", n))
		return nil
	},
}
