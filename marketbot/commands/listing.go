package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/handlers"
	"github.com/flowermarket/market-bot/marketbot/utils"
)

var listingCommand = discord.SlashCommandCreate{
	Name:        "listing",
	Description: "Sell flowers on the market",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Start a new listing, then send its photos to the bot in DMs",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "type",
					Description: "Sell at a fixed price or run an auction",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Auction", Value: "auction"},
						{Name: "Fixed price", Value: "regular"},
					},
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "What you are selling",
					Required:    true,
					MaxLength:   intPtr(100),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "price",
					Description: "Price, or the starting price of an auction",
					Required:    true,
					MinValue:    intPtr(economicUtils.MinBidAmount),
				},
				discord.ApplicationCommandOptionString{
					Name:        "phone",
					Description: "Contact phone shared with the buyer",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "location",
					Description: "Where the flowers can be picked up",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "Anything buyers should know",
					MaxLength:   intPtr(1000),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "duration",
					Description: "Auction length",
					Choices:     durationChoices(economicUtils.AuctionDurations),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "submit",
			Description: "Pay the posting fee and publish your listing",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Discard the listing you are preparing",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "mine",
			Description: "Show your listings",
		},
	},
}

func durationChoices(minutes []int) []discord.ApplicationCommandOptionChoiceInt {
	choices := make([]discord.ApplicationCommandOptionChoiceInt, 0, len(minutes))
	for _, m := range minutes {
		choices = append(choices, discord.ApplicationCommandOptionChoiceInt{
			Name:  utils.FormatDuration(time.Duration(m) * time.Minute),
			Value: m,
		})
	}
	return choices
}

type ListingHandler struct {
	b *marketbot.Bot
}

func NewListingHandler(b *marketbot.Bot) *ListingHandler {
	return &ListingHandler{b: b}
}

func (h *ListingHandler) Register(r handler.Router) {
	r.Route("/listing", func(r handler.Router) {
		r.Command("/create", handlers.WrapWithLogging("listing-create", h.HandleCreate))
		r.Command("/submit", handlers.WrapWithLogging("listing-submit", h.HandleSubmit))
		r.Command("/cancel", handlers.WrapWithLogging("listing-cancel", h.HandleCancel))
		r.Command("/mine", handlers.WrapWithLogging("listing-mine", h.HandleMine))
	})
}

func (h *ListingHandler) HandleCreate(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	input := drafts.StartInput{
		IsAuction:   data.String("type") == "auction",
		Name:        strings.TrimSpace(data.String("name")),
		Description: strings.TrimSpace(data.String("description")),
		Price:       int64(data.Int("price")),
		Phone:       strings.TrimSpace(data.String("phone")),
		Location:    strings.TrimSpace(data.String("location")),
	}
	if minutes, ok := data.OptInt("duration"); ok {
		input.DurationMinutes = minutes
	}

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	owner := identity(e.User())
	if _, _, err := h.b.Accounts.ResolveOrCreate(ctx, owner); err != nil {
		return updateDeferredError(e, err)
	}
	draft, err := h.b.Drafts.Start(ctx, owner, input)
	if err != nil {
		return updateDeferredError(e, err)
	}

	return updateDeferredEmbed(e, "📝 Listing started", draftSummary(h.b, draft)+
		fmt.Sprintf("\nSend up to %d photos to me in DMs, then run `/listing submit`.", h.b.Cfg.Market.MaxMedia))
}

func draftSummary(b *marketbot.Bot, d *models.ListingDraft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", d.Name)
	if d.IsAuction {
		fmt.Fprintf(&sb, "🔨 Auction from **%s**, running %s\n",
			utils.FormatPrice(d.Price, b.Cfg.Market.Currency),
			utils.FormatDuration(time.Duration(d.DurationMinutes)*time.Minute))
	} else {
		fmt.Fprintf(&sb, "🛒 Fixed price **%s**\n", utils.FormatPrice(d.Price, b.Cfg.Market.Currency))
	}
	fmt.Fprintf(&sb, "📷 Photos: %d\n", len(d.MediaURLs))
	fmt.Fprintf(&sb, "💳 Posting fee: %s\n", utils.FormatPrice(b.Drafts.Fee(d.IsAuction), b.Cfg.Market.Currency))
	return sb.String()
}

func (h *ListingHandler) HandleSubmit(e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	ownerID := e.User().ID.String()
	draft, err := h.b.Drafts.Current(ctx, ownerID)
	if err != nil {
		return updateDeferredError(e, err)
	}
	if len(draft.MediaURLs) == 0 {
		return updateDeferred(e, "📷 Send at least one photo to me in DMs before submitting.")
	}

	result, err := h.b.Drafts.Submit(ctx, draft.ID, ownerID)
	if err != nil {
		return updateDeferredError(e, err)
	}
	if !result.Published() {
		return updateDeferredEmbed(e, "💳 Top-up needed", topUpInstructions(h.b, result.Shortfall))
	}
	return updateDeferredEmbed(e, "✅ Listing published",
		fmt.Sprintf("**%s** is live as listing #%d. %s was charged.",
			result.Draft.Name, result.Listing.ID, utils.FormatPrice(result.Fee, h.b.Cfg.Market.Currency)))
}

func topUpInstructions(b *marketbot.Bot, shortfall int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your balance is short by **%s**.\n", utils.FormatPrice(shortfall, b.Cfg.Market.Currency))
	if card := b.Settings.PaymentCard(); card != "" {
		fmt.Fprintf(&sb, "Transfer the amount to `%s`, ", card)
	} else {
		sb.WriteString("Make the transfer, ")
	}
	sb.WriteString("then send the receipt with `/account topup`. Your listing is published as soon as the payment is approved.")
	return sb.String()
}

func (h *ListingHandler) HandleCancel(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()

	ownerID := e.User().ID.String()
	draft, err := h.b.Drafts.Current(ctx, ownerID)
	if err != nil {
		return replyError(e, err)
	}
	if err := h.b.Drafts.Cancel(ctx, draft.ID, ownerID); err != nil {
		return replyError(e, err)
	}
	h.b.Debouncer.Cancel(ownerID)
	return replyEphemeral(e, fmt.Sprintf("🗑️ Discarded **%s**.", draft.Name))
}

func (h *ListingHandler) HandleMine(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()

	listings, err := h.b.Listings.GetByOwner(ctx, e.User().ID.String())
	if err != nil {
		return replyError(e, err)
	}
	if len(listings) == 0 {
		return replyEphemeral(e, "ℹ️ You have no listings yet. Start one with `/listing create`.")
	}

	now := time.Now()
	totalPages := (len(listings) + config.DefaultPageSize - 1) / config.DefaultPageSize
	return h.b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * config.DefaultPageSize
			end := min(start+config.DefaultPageSize, len(listings))

			var sb strings.Builder
			for _, l := range listings[start:end] {
				sb.WriteString(describeListing(h.b.Engine.Views(), l, now))
				sb.WriteString("\n")
			}
			embed.
				SetTitle("🌷 Your listings").
				SetDescription(sb.String()).
				SetColor(config.BackgroundColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d listings", page+1, totalPages, len(listings)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}
