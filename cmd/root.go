// Package cmd is the operator CLI. Its commands share the bot's
// configuration file and talk to the same database.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/disgoorg/disgo/rest"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/database"
	"github.com/flowermarket/market-bot/marketbot/services"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "marketctl",
	Short:         "Maintenance commands for the flower market bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config")
	rootCmd.AddCommand(migrateCmd, sweepCmd, expireDraftsCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		slog.Error("Command failed", slog.String("type", "error"), slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig() (*marketbot.Config, error) {
	cfg, err := marketbot.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(marketbot.NewLogHandler(os.Stderr, cfg.Log)))
	return cfg, nil
}

func openDB(ctx context.Context, cfg *marketbot.Config) (*database.DB, error) {
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openBot wires the domain services without a gateway connection.
// Notifications still go out through the REST API.
func openBot(ctx context.Context) (*marketbot.Bot, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	b := marketbot.New(*cfg, "cli", "")
	b.InitServices(db, services.NewDiscordMessenger(rest.New(rest.NewClient(cfg.Bot.Token)), cfg.Bot.MarketChannelID))
	return b, db.Close, nil
}
