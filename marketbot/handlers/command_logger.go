package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/logger"
)

const slowThreshold = 2 * time.Second

// WrapWithLogging wraps a command handler with logging functionality
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return run("cmd", name, e.User(), e.GuildID(), e.ChannelID(), func() error {
			return h(e)
		})
	}
}

// WrapComponentWithLogging wraps a component handler with logging functionality
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return run("component", name, e.User(), e.GuildID(), e.ChannelID(), func() error {
			return h(e)
		})
	}
}

func run(kind, name string, user discord.User, guildID *snowflake.ID, channelID snowflake.ID, fn func() error) error {
	start := time.Now()

	slog.Debug("Interaction started",
		slog.String("type", kind),
		slog.String("name", name),
		slog.String("user_id", user.ID.String()),
		slog.String("user_name", user.Username),
		slog.String("guild_id", guildString(guildID)),
		slog.String("channel_id", channelID.String()),
	)

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		duration := time.Since(start)
		if err == nil && duration > slowThreshold {
			slog.Warn("Interaction executed slowly",
				slog.String("type", kind),
				slog.String("name", name),
				slog.String("user_id", user.ID.String()),
				slog.Duration("took", duration),
				slog.String("status", "slow"),
			)
			return nil
		}
		logger.LogInteraction(kind, name, user.ID.String(), duration, err)
		return err

	case <-time.After(config.CommandTimeout):
		slog.Error("Interaction timed out",
			slog.String("type", kind),
			slog.String("name", name),
			slog.String("user_id", user.ID.String()),
			slog.String("user_name", user.Username),
			slog.String("status", "timeout"),
			slog.Duration("timeout", config.CommandTimeout),
		)
		return fmt.Errorf("%s %s timed out after %s", kind, name, config.CommandTimeout)
	}
}

func guildString(id *snowflake.ID) string {
	if id == nil {
		return "dm"
	}
	return id.String()
}
