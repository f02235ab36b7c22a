package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	"github.com/flowermarket/market-bot/marketbot/economy/settings"
)

var errNotAdmin = errors.New("admin only")

var userMessages = []struct {
	err error
	msg string
}{
	{auction.ErrStaleBid, "Your bid must be higher than the current price."},
	{auction.ErrAuctionExpired, "This auction's time is over."},
	{auction.ErrOwnerCannotBid, "You cannot bid on your own auction."},
	{auction.ErrNotPublished, "This listing is not open."},
	{auction.ErrNotOwner, "Only the seller can do that."},
	{auction.ErrAlreadyResolved, "This auction is already closed."},
	{auction.ErrNotFound, "Listing not found."},
	{auction.ErrNotAuction, "This listing is not an auction."},
	{auction.ErrNotParticipant, "Join the auction before bidding."},
	{auction.ErrAlreadyParticipating, "You are already taking part in another auction. Leave it first."},
	{auction.ErrInvalidAmount, "The bid must be a positive number."},
	{auction.ErrNotPending, "This listing was already published."},
	{auction.ErrInvalidDeadline, "The auction deadline must be in the future."},
	{accounts.ErrInsufficientFunds, "Your balance is too low."},
	{accounts.ErrInvalidAmount, "The amount must be positive."},
	{accounts.ErrUnknownUser, "No account found for that user."},
	{accounts.ErrPaymentNotFound, "Payment not found."},
	{accounts.ErrPaymentReviewed, "This payment was already reviewed."},
	{drafts.ErrNoOpenDraft, "You have no listing in progress. Start one with `/listing create`."},
	{drafts.ErrDraftNotFound, "Listing draft not found."},
	{drafts.ErrNotDraftOwner, "This draft belongs to someone else."},
	{drafts.ErrDraftClosed, "This draft can no longer be submitted."},
	{drafts.ErrDraftExpired, "This draft has expired. Start a new one with `/listing create`."},
	{drafts.ErrTooManyMedia, "That is too many photos for one listing."},
	{drafts.ErrInvalidDraft, "Some listing details are invalid."},
	{drafts.ErrInvalidDuration, "That auction duration is not offered."},
	{settings.ErrInvalidValue, "Prices must be positive and card numbers at most 64 characters."},
	{errNotAdmin, "This command is for market admins only."},
}

// userMessage turns an error into the text shown to the user. Unknown
// errors are logged and replaced with a generic message.
func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return "❌ " + m.msg
		}
	}

	slog.Error("Unexpected interaction error",
		slog.String("type", "error"),
		slog.Any("error", err))
	return "❌ Something went wrong. Please try again later."
}

type responder interface {
	CreateMessage(messageCreate discord.MessageCreate, opts ...rest.RequestOpt) error
}

type deferredResponder interface {
	UpdateInteractionResponse(messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
}

func replyEphemeral(e responder, text string) error {
	return e.CreateMessage(discord.MessageCreate{
		Content: text,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func replyError(e responder, err error) error {
	return replyEphemeral(e, userMessage(err))
}

func replyEmbed(e responder, title, description string, color int) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{
			discord.NewEmbedBuilder().
				SetTitle(title).
				SetDescription(description).
				SetColor(color).
				Build(),
		},
		Flags: discord.MessageFlagEphemeral,
	})
}

func updateDeferred(e deferredResponder, text string) error {
	_, err := e.UpdateInteractionResponse(discord.MessageUpdate{Content: &text})
	return err
}

func updateDeferredError(e deferredResponder, err error) error {
	return updateDeferred(e, userMessage(err))
}

func updateDeferredEmbed(e deferredResponder, title, description string) error {
	embeds := []discord.Embed{
		discord.NewEmbedBuilder().
			SetTitle(title).
			SetDescription(description).
			SetColor(config.SuccessColor).
			Build(),
	}
	_, err := e.UpdateInteractionResponse(discord.MessageUpdate{Embeds: &embeds})
	return err
}

func staleBidMessage(current string) string {
	return fmt.Sprintf("❌ Your bid must be higher than the current price of **%s**.", current)
}
