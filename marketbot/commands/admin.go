package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/handlers"
	"github.com/flowermarket/market-bot/marketbot/services"
	"github.com/flowermarket/market-bot/marketbot/utils"
)

var paymentOption = discord.ApplicationCommandOptionInt{
	Name:        "payment",
	Description: "Payment number",
	Required:    true,
	MinValue:    intPtr(1),
}

var adminCommand = discord.SlashCommandCreate{
	Name:        "admin",
	Description: "Market administration",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "payments",
			Description: "List payments waiting for review",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "approve",
			Description: "Approve a payment and credit the balance",
			Options:     []discord.ApplicationCommandOption{paymentOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reject",
			Description: "Reject a payment",
			Options:     []discord.ApplicationCommandOption{paymentOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "credit",
			Description: "Add money to a user's balance",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Whose balance to credit",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Amount to add",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "stats",
			Description: "Users, balances and approved income",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "price",
			Description: "Change a posting price",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "type",
					Description: "Which posting price",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Auction", Value: "auction"},
						{Name: "Fixed price", Value: "regular"},
					},
				},
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "New price",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "card",
			Description: "Change the card users transfer top-ups to",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "number",
					Description: "Card number shown in top-up instructions",
					Required:    true,
					MaxLength:   intPtr(64),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "force-end",
			Description: "Close a listing without a sale",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "listing",
					Description: "Listing number",
					Required:    true,
				},
			},
		},
	},
}

type AdminHandler struct {
	b *marketbot.Bot
}

func NewAdminHandler(b *marketbot.Bot) *AdminHandler {
	return &AdminHandler{b: b}
}

func (h *AdminHandler) Register(r handler.Router) {
	r.Route("/admin", func(r handler.Router) {
		r.Command("/payments", handlers.WrapWithLogging("admin-payments", h.adminOnly(h.HandlePayments)))
		r.Command("/approve", handlers.WrapWithLogging("admin-approve", h.adminOnly(h.HandleApprove)))
		r.Command("/reject", handlers.WrapWithLogging("admin-reject", h.adminOnly(h.HandleReject)))
		r.Command("/credit", handlers.WrapWithLogging("admin-credit", h.adminOnly(h.HandleCredit)))
		r.Command("/stats", handlers.WrapWithLogging("admin-stats", h.adminOnly(h.HandleStats)))
		r.Command("/price", handlers.WrapWithLogging("admin-price", h.adminOnly(h.HandlePrice)))
		r.Command("/card", handlers.WrapWithLogging("admin-card", h.adminOnly(h.HandleCard)))
		r.Command("/force-end", handlers.WrapWithLogging("admin-force-end", h.adminOnly(h.HandleForceEnd)))
	})
}

func (h *AdminHandler) adminOnly(next handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !h.b.Cfg.Bot.IsAdmin(e.User().ID) {
			slog.Warn("Admin command refused",
				slog.String("type", "cmd"),
				slog.String("user_id", e.User().ID.String()))
			return replyError(e, errNotAdmin)
		}
		return next(e)
	}
}

func (h *AdminHandler) HandlePayments(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()

	payments, err := h.b.Accounts.PendingPayments(ctx)
	if err != nil {
		return replyError(e, err)
	}
	if len(payments) == 0 {
		return replyEphemeral(e, "✅ No payments are waiting for review.")
	}

	totalPages := (len(payments) + config.DefaultPageSize - 1) / config.DefaultPageSize
	return h.b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			embed.
				SetTitle("💳 Pending payments").
				SetDescription(paymentPage(payments, page, h.b.Cfg.Market.Currency)).
				SetColor(config.WarningColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d pending", page+1, totalPages, len(payments)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}

func paymentPage(payments []*models.Payment, page int, currency string) string {
	start := page * config.DefaultPageSize
	end := min(start+config.DefaultPageSize, len(payments))

	var sb strings.Builder
	for _, p := range payments[start:end] {
		fmt.Fprintf(&sb, "`#%d` **%s** • <@%s> • <t:%d:R>", p.ID, utils.FormatPrice(p.Amount, currency), p.DiscordID, p.CreatedAt.Unix())
		if p.DraftID != nil {
			sb.WriteString(" • for a listing")
		}
		fmt.Fprintf(&sb, "\n[receipt](%s)\n", p.ScreenshotURL)
	}
	return sb.String()
}

func (h *AdminHandler) HandleApprove(e *handler.CommandEvent) error {
	paymentID := int64(e.SlashCommandInteractionData().Int("payment"))
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	payment, err := h.b.Accounts.ApprovePayment(ctx, paymentID, e.User().ID.String())
	if err != nil {
		return updateDeferredError(e, err)
	}

	amount := utils.FormatPrice(payment.Amount, h.b.Cfg.Market.Currency)
	h.notifyUser(e, payment.DiscordID, auction.Message{
		Title: "💳 Payment approved",
		Text:  fmt.Sprintf("**%s** was added to your balance.", amount),
	})
	return updateDeferred(e, fmt.Sprintf("✅ Payment #%d approved, %s credited to <@%s>.", payment.ID, amount, payment.DiscordID))
}

func (h *AdminHandler) HandleReject(e *handler.CommandEvent) error {
	paymentID := int64(e.SlashCommandInteractionData().Int("payment"))
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	payment, err := h.b.Accounts.RejectPayment(ctx, paymentID, e.User().ID.String())
	if err != nil {
		return updateDeferredError(e, err)
	}

	h.notifyUser(e, payment.DiscordID, auction.Message{
		Title: "❌ Payment rejected",
		Text:  fmt.Sprintf("Payment #%d could not be confirmed. Contact an admin if you think this is a mistake.", payment.ID),
	})
	return updateDeferred(e, fmt.Sprintf("🚫 Payment #%d rejected.", payment.ID))
}

func (h *AdminHandler) notifyUser(e *handler.CommandEvent, userID string, msg auction.Message) {
	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Messenger.Notify(ctx, userID, msg); err != nil {
		slog.Warn("Failed to notify user",
			slog.String("type", "cmd"),
			slog.String("user_id", userID),
			slog.String("admin_id", e.User().ID.String()),
			slog.Any("error", err))
	}
}

func (h *AdminHandler) HandleCredit(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	target := data.User("user")
	amount := int64(data.Int("amount"))

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	userID := target.ID.String()
	if err := h.b.Accounts.Credit(ctx, userID, amount); err != nil {
		return updateDeferredError(e, err)
	}
	balance, err := h.b.Accounts.Balance(ctx, userID)
	if err != nil {
		return updateDeferredError(e, err)
	}

	slog.Info("Balance credited by admin",
		slog.String("type", "cmd"),
		slog.String("user_id", userID),
		slog.String("admin_id", e.User().ID.String()),
		slog.Int64("amount", amount))

	currency := h.b.Cfg.Market.Currency
	h.notifyUser(e, userID, auction.Message{
		Title: "🎉 Balance topped up",
		Text: fmt.Sprintf("**%s** was added to your balance.\nNew balance: **%s**",
			utils.FormatPrice(amount, currency), utils.FormatPrice(balance, currency)),
	})
	return updateDeferred(e, fmt.Sprintf("✅ Added %s to <@%s>. New balance: %s.",
		utils.FormatPrice(amount, currency), userID, utils.FormatPrice(balance, currency)))
}

func (h *AdminHandler) HandleStats(e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	now := time.Now()
	stats, err := h.b.Accounts.Stats(ctx, now)
	if err != nil {
		return updateDeferredError(e, err)
	}
	return updateDeferredEmbed(e, "📊 Market statistics", statsText(stats, marketSettings{
		regularFee: h.b.Drafts.Fee(false),
		auctionFee: h.b.Drafts.Fee(true),
		card:       h.b.Settings.PaymentCard(),
	}, h.b.Cfg.Market.Currency, now))
}

type marketSettings struct {
	regularFee int64
	auctionFee int64
	card       string
}

func statsText(stats *accounts.Stats, current marketSettings, currency string, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Users: **%d**\n", stats.Users)
	fmt.Fprintf(&sb, "💰 Balances held: **%s**\n\n", utils.FormatPrice(stats.TotalBalance, currency))

	fmt.Fprintf(&sb, "**Income** (%s UTC)\n", now.UTC().Format("02.01.2006"))
	for _, p := range stats.Income {
		fmt.Fprintf(&sb, "%s: **%s** • %d payments\n", p.Label, utils.FormatPrice(p.Amount, currency), p.Count)
	}
	fmt.Fprintf(&sb, "All time: **%s** • %d payments\n\n", utils.FormatPrice(stats.TotalIncome.Amount, currency), stats.TotalIncome.Count)

	card := current.card
	if card == "" {
		card = "not set"
	}
	fmt.Fprintf(&sb, "🛒 Fixed-price post: %s\n", utils.FormatPrice(current.regularFee, currency))
	fmt.Fprintf(&sb, "🔨 Auction post: %s\n", utils.FormatPrice(current.auctionFee, currency))
	fmt.Fprintf(&sb, "💳 Card: %s", card)
	return sb.String()
}

func (h *AdminHandler) HandlePrice(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	isAuction := data.String("type") == "auction"
	amount := int64(data.Int("amount"))

	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Settings.SetPostFee(ctx, isAuction, amount, e.User().ID.String()); err != nil {
		return replyError(e, err)
	}

	kind := "Fixed-price"
	if isAuction {
		kind = "Auction"
	}
	return replyEphemeral(e, fmt.Sprintf("✅ %s posts now cost %s.", kind, utils.FormatPrice(amount, h.b.Cfg.Market.Currency)))
}

func (h *AdminHandler) HandleCard(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Settings.SetPaymentCard(ctx, e.SlashCommandInteractionData().String("number"), e.User().ID.String()); err != nil {
		return replyError(e, err)
	}
	return replyEphemeral(e, fmt.Sprintf("✅ Top-ups now go to `%s`.", h.b.Settings.PaymentCard()))
}

func (h *AdminHandler) HandleForceEnd(e *handler.CommandEvent) error {
	listingID, err := services.ParseListingID(e.SlashCommandInteractionData().String("listing"))
	if err != nil {
		return replyEphemeral(e, "❌ Enter a listing number.")
	}
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Engine.ForceEnd(ctx, listingID, e.User().ID.String()); err != nil {
		return updateDeferredError(e, err)
	}
	return updateDeferred(e, fmt.Sprintf("🛑 Listing #%d closed.", listingID))
}
