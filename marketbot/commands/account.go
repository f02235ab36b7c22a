package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	"github.com/flowermarket/market-bot/marketbot/handlers"
	"github.com/flowermarket/market-bot/marketbot/utils"
	"github.com/google/uuid"
)

var accountCommand = discord.SlashCommandCreate{
	Name:        "account",
	Description: "Your market balance",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "balance",
			Description: "Show your balance",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "topup",
			Description: "Send a payment receipt for review",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Amount you transferred",
					Required:    true,
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionAttachment{
					Name:        "receipt",
					Description: "Screenshot of the transfer",
					Required:    true,
				},
			},
		},
	},
}

type AccountHandler struct {
	b *marketbot.Bot
}

func NewAccountHandler(b *marketbot.Bot) *AccountHandler {
	return &AccountHandler{b: b}
}

func (h *AccountHandler) Register(r handler.Router) {
	r.Route("/account", func(r handler.Router) {
		r.Command("/balance", handlers.WrapWithLogging("account-balance", h.HandleBalance))
		r.Command("/topup", handlers.WrapWithLogging("account-topup", h.HandleTopUp))
	})
}

func (h *AccountHandler) HandleBalance(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()

	user, created, err := h.b.Accounts.ResolveOrCreate(ctx, identity(e.User()))
	if err != nil {
		return replyError(e, err)
	}

	var sb strings.Builder
	if created {
		fmt.Fprintf(&sb, "🎁 Welcome! You received a bonus of **%s**.\n",
			utils.FormatPrice(h.b.Cfg.Market.NewUserBonus, h.b.Cfg.Market.Currency))
	}
	fmt.Fprintf(&sb, "💰 Balance: **%s**\n", utils.FormatPrice(user.Balance, h.b.Cfg.Market.Currency))
	fmt.Fprintf(&sb, "🔨 Auction post: %s\n", utils.FormatPrice(h.b.Drafts.Fee(true), h.b.Cfg.Market.Currency))
	fmt.Fprintf(&sb, "🛒 Regular post: %s", utils.FormatPrice(h.b.Drafts.Fee(false), h.b.Cfg.Market.Currency))
	if card := h.b.Settings.PaymentCard(); card != "" {
		fmt.Fprintf(&sb, "\n💳 Top-up card: `%s`", card)
	}
	return replyEmbed(e, "👛 Your account", sb.String(), config.InfoColor)
}

func (h *AccountHandler) HandleTopUp(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	amount := int64(data.Int("amount"))
	receipt := data.Attachment("receipt")

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	who := identity(e.User())
	contentType := ""
	if receipt.ContentType != nil {
		contentType = *receipt.ContentType
	}
	receiptURL, err := h.b.Media.StoreMedia(ctx, who.ID, receipt.URL, contentType)
	if err != nil {
		return updateDeferredError(e, err)
	}

	var draftID *uuid.UUID
	if draft, err := h.b.Drafts.Current(ctx, who.ID); err == nil && draft.Status == models.DraftStatusAwaitingPayment {
		draftID = &draft.ID
	} else if err != nil && !errors.Is(err, drafts.ErrNoOpenDraft) {
		slog.Warn("Failed to look up draft for top-up",
			slog.String("type", "cmd"),
			slog.String("user_id", who.ID),
			slog.Any("error", err))
	}

	payment, err := h.b.Accounts.SubmitPayment(ctx, who, amount, receiptURL, draftID)
	if err != nil {
		return updateDeferredError(e, err)
	}

	notifyAdmins(ctx, h.b, auction.Message{
		Title: "💳 New payment",
		Text: fmt.Sprintf("Payment **#%d** of **%s** from <@%s>.\n%s\nReview it with `/admin approve` or `/admin reject`.",
			payment.ID, utils.FormatPrice(amount, h.b.Cfg.Market.Currency), who.ID, receiptURL),
	})

	return updateDeferredEmbed(e, "📨 Payment sent for review",
		fmt.Sprintf("Payment #%d of **%s** is waiting for approval. You will get a DM once it is reviewed.",
			payment.ID, utils.FormatPrice(amount, h.b.Cfg.Market.Currency)))
}

func notifyAdmins(ctx context.Context, b *marketbot.Bot, msg auction.Message) {
	for _, id := range b.Cfg.Bot.AdminIDs {
		if err := b.Messenger.Notify(ctx, id.String(), msg); err != nil {
			slog.Warn("Failed to notify admin",
				slog.String("type", "cmd"),
				slog.String("admin_id", id.String()),
				slog.Any("error", err))
		}
	}
}
