package commands

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
)

var Commands = []discord.ApplicationCommandCreate{
	auctionCommand,
	listingCommand,
	accountCommand,
	adminCommand,
}

// Register mounts every command, component and autocomplete handler on r.
func Register(r handler.Router, b *marketbot.Bot) {
	NewAuctionHandler(b).Register(r)
	NewListingHandler(b).Register(r)
	NewAccountHandler(b).Register(r)
	NewAdminHandler(b).Register(r)
}

// interaction is what command and component events have in common.
type interaction interface {
	responder
	deferredResponder
	User() discord.User
	DeferCreateMessage(ephemeral bool, opts ...rest.RequestOpt) error
}

func identity(u discord.User) auction.Identity {
	return auction.Identity{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.EffectiveName(),
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.CommandTimeout)
}

func intPtr(v int) *int {
	return &v
}
