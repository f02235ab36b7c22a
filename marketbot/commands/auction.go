package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/handlers"
	"github.com/flowermarket/market-bot/marketbot/services"
	"github.com/flowermarket/market-bot/marketbot/utils"
	"github.com/sahilm/fuzzy"
)

var listingOption = discord.ApplicationCommandOptionString{
	Name:         "listing",
	Description:  "The auction, by name or number",
	Required:     true,
	Autocomplete: true,
}

var auctionCommand = discord.SlashCommandCreate{
	Name:        "auction",
	Description: "Take part in flower auctions",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "join",
			Description: "Join an auction to start bidding",
			Options:     []discord.ApplicationCommandOption{listingOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "leave",
			Description: "Leave an auction",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "listing",
					Description:  "The auction to leave, defaults to your current one",
					Autocomplete: true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bid",
			Description: "Place a bid",
			Options: []discord.ApplicationCommandOption{
				listingOption,
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Your bid",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bids",
			Description: "Show the bid history of an auction",
			Options:     []discord.ApplicationCommandOption{listingOption},
		},
	},
}

type AuctionHandler struct {
	b *marketbot.Bot
}

func NewAuctionHandler(b *marketbot.Bot) *AuctionHandler {
	return &AuctionHandler{b: b}
}

func (h *AuctionHandler) Register(r handler.Router) {
	r.Route("/auction", func(r handler.Router) {
		r.Command("/join", handlers.WrapWithLogging("auction-join", h.HandleJoin))
		r.Command("/leave", handlers.WrapWithLogging("auction-leave", h.HandleLeave))
		r.Command("/bid", handlers.WrapWithLogging("auction-bid", h.HandleBid))
		r.Command("/bids", handlers.WrapWithLogging("auction-bids", h.HandleBids))

		r.Autocomplete("/join", h.HandleListingAutocomplete)
		r.Autocomplete("/leave", h.HandleListingAutocomplete)
		r.Autocomplete("/bid", h.HandleListingAutocomplete)
		r.Autocomplete("/bids", h.HandleListingAutocomplete)
	})

	r.Component("/auction/join/{listing}", handlers.WrapComponentWithLogging("auction-join-button", h.HandleJoinButton))
	r.Component("/auction/leave/{listing}", handlers.WrapComponentWithLogging("auction-leave-button", h.HandleLeaveButton))
	r.Component("/auction/sell/{listing}/{bid}", handlers.WrapComponentWithLogging("auction-sell", h.HandleSell))
	r.Component("/auction/end/{listing}", handlers.WrapComponentWithLogging("auction-end", h.HandleEnd))
}

func (h *AuctionHandler) HandleJoin(e *handler.CommandEvent) error {
	listingID, err := services.ParseListingID(e.SlashCommandInteractionData().String("listing"))
	if err != nil {
		return replyEphemeral(e, "❌ Pick an auction from the list.")
	}
	return h.join(e, listingID)
}

func (h *AuctionHandler) HandleJoinButton(e *handler.ComponentEvent) error {
	listingID, err := services.ParseListingID(e.Vars["listing"])
	if err != nil {
		return err
	}
	return h.join(e, listingID)
}

func (h *AuctionHandler) join(e interaction, listingID int64) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	who := identity(e.User())
	if _, _, err := h.b.Accounts.ResolveOrCreate(ctx, who); err != nil {
		return updateDeferredError(e, err)
	}
	if _, err := h.b.Engine.Join(ctx, listingID, who); err != nil {
		return updateDeferredError(e, err)
	}
	return updateDeferred(e, fmt.Sprintf("✅ You joined auction #%d. Send your bid as a number in my DMs or use `/auction bid`.", listingID))
}

func (h *AuctionHandler) HandleLeave(e *handler.CommandEvent) error {
	raw, ok := e.SlashCommandInteractionData().OptString("listing")
	if !ok {
		return h.leave(e, 0)
	}
	listingID, err := services.ParseListingID(raw)
	if err != nil {
		return replyEphemeral(e, "❌ Pick an auction from the list.")
	}
	return h.leave(e, listingID)
}

func (h *AuctionHandler) HandleLeaveButton(e *handler.ComponentEvent) error {
	listingID, err := services.ParseListingID(e.Vars["listing"])
	if err != nil {
		return err
	}
	return h.leave(e, listingID)
}

// leave removes the user from listingID, or from their current auction when listingID is 0.
func (h *AuctionHandler) leave(e interaction, listingID int64) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	userID := e.User().ID.String()
	if listingID == 0 {
		current, err := h.b.Engine.CurrentActiveAuction(ctx, userID)
		if err != nil {
			if errors.Is(err, auction.ErrNotFound) {
				return updateDeferred(e, "ℹ️ You are not taking part in any auction.")
			}
			return updateDeferredError(e, err)
		}
		listingID = current.ListingID
	}

	left, err := h.b.Engine.Leave(ctx, listingID, userID)
	if err != nil {
		return updateDeferredError(e, err)
	}
	if !left {
		return updateDeferred(e, fmt.Sprintf("ℹ️ You were not taking part in auction #%d.", listingID))
	}
	return updateDeferred(e, fmt.Sprintf("👋 You left auction #%d.", listingID))
}

func (h *AuctionHandler) HandleBid(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	listingID, err := services.ParseListingID(data.String("listing"))
	if err != nil {
		return replyEphemeral(e, "❌ Pick an auction from the list.")
	}

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	bid, err := h.b.Engine.SubmitBid(ctx, listingID, identity(e.User()), int64(data.Int("amount")))
	if err != nil {
		return updateDeferred(e, bidErrorMessage(ctx, h.b.Engine, listingID, err))
	}
	return updateDeferred(e, fmt.Sprintf("✅ Your bid of **%s** on auction #%d is now the highest.",
		h.b.Engine.Views().Price(bid.Amount), listingID))
}

// bidErrorMessage explains a rejected bid. A stale bid shows the price to beat.
func bidErrorMessage(ctx context.Context, engine *auction.Engine, listingID int64, err error) string {
	if !errors.Is(err, auction.ErrStaleBid) {
		return userMessage(err)
	}
	listing, lerr := engine.Listing(ctx, listingID)
	if lerr != nil {
		return userMessage(err)
	}
	return staleBidMessage(engine.Views().Price(listing.CurrentBid))
}

func (h *AuctionHandler) HandleBids(e *handler.CommandEvent) error {
	listingID, err := services.ParseListingID(e.SlashCommandInteractionData().String("listing"))
	if err != nil {
		return replyEphemeral(e, "❌ Pick an auction from the list.")
	}

	ctx, cancel := commandContext()
	defer cancel()

	listing, err := h.b.Engine.Listing(ctx, listingID)
	if err != nil {
		return replyError(e, err)
	}
	bids, err := h.b.Engine.History(ctx, listingID)
	if err != nil {
		return replyError(e, err)
	}
	if len(bids) == 0 {
		return replyEphemeral(e, fmt.Sprintf("ℹ️ No bids on **%s** yet. The starting price is **%s**.",
			listing.Name, h.b.Engine.Views().Price(listing.StartingPrice)))
	}

	totalPages := (len(bids) + config.BidsPerPage - 1) / config.BidsPerPage
	return h.b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			embed.
				SetTitle(fmt.Sprintf("🔨 Bids on %s", listing.Name)).
				SetDescription(bidPage(h.b.Engine.Views(), bids, page)).
				SetColor(config.BackgroundColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d bids", page+1, totalPages, len(bids)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}

func bidPage(views *auction.Views, bids []*models.AuctionBid, page int) string {
	start := page * config.BidsPerPage
	end := min(start+config.BidsPerPage, len(bids))

	var b strings.Builder
	for i := start; i < end; i++ {
		bid := bids[i]
		fmt.Fprintf(&b, "`%2d.` **%s** • %s • <t:%d:R>\n", i+1, views.Price(bid.Amount), bid.Name(), bid.CreatedAt.Unix())
	}
	return b.String()
}

func (h *AuctionHandler) HandleSell(e *handler.ComponentEvent) error {
	listingID, err := services.ParseListingID(e.Vars["listing"])
	if err != nil {
		return err
	}
	bidID, err := strconv.ParseInt(e.Vars["bid"], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid bid id %q: %w", e.Vars["bid"], err)
	}

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Engine.SellTo(ctx, listingID, bidID, e.User().ID.String()); err != nil {
		return updateDeferredError(e, err)
	}
	return updateDeferredEmbed(e, "✅ Sold", fmt.Sprintf("Auction #%d is closed. The buyer's contact was sent to you.", listingID))
}

func (h *AuctionHandler) HandleEnd(e *handler.ComponentEvent) error {
	listingID, err := services.ParseListingID(e.Vars["listing"])
	if err != nil {
		return err
	}

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	if err := h.b.Engine.End(ctx, listingID, e.User().ID.String()); err != nil {
		return updateDeferredError(e, err)
	}
	return updateDeferredEmbed(e, "🏁 Auction ended", fmt.Sprintf("Auction #%d was closed without a sale.", listingID))
}

func (h *AuctionHandler) HandleListingAutocomplete(e *handler.AutocompleteEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.AutocompleteTimeout)
	defer cancel()

	listings, err := h.b.Engine.PublishedAuctions(ctx)
	if err != nil {
		return e.AutocompleteResult([]discord.AutocompleteChoice{})
	}
	return e.AutocompleteResult(listingChoices(h.b.Engine.Views(), listings, e.Data.String("listing"), time.Now()))
}

type listingSource []*models.Listing

func (s listingSource) String(i int) string {
	return s[i].Name
}

func (s listingSource) Len() int {
	return len(s)
}

// listingChoices suggests open auctions whose name fuzzily matches query.
// A numeric query also matches the listing number.
func listingChoices(views *auction.Views, listings []*models.Listing, query string, now time.Time) []discord.AutocompleteChoice {
	open := make(listingSource, 0, len(listings))
	for _, l := range listings {
		if !l.Expired(now) {
			open = append(open, l)
		}
	}

	query = strings.TrimSpace(strings.TrimPrefix(query, "#"))
	var matched []*models.Listing
	switch {
	case query == "":
		matched = open
	default:
		if id, err := strconv.ParseInt(query, 10, 64); err == nil {
			for _, l := range open {
				if l.ID == id {
					matched = append(matched, l)
				}
			}
		}
		for _, m := range fuzzy.FindFrom(query, open) {
			if !containsListing(matched, open[m.Index].ID) {
				matched = append(matched, open[m.Index])
			}
		}
	}

	choices := make([]discord.AutocompleteChoice, 0, min(len(matched), config.MaxChoices))
	for _, l := range matched {
		if len(choices) == config.MaxChoices {
			break
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  truncate(fmt.Sprintf("#%d %s • %s", l.ID, l.Name, views.Price(l.CurrentBid)), 100),
			Value: strconv.FormatInt(l.ID, 10),
		})
	}
	return choices
}

func containsListing(listings []*models.Listing, id int64) bool {
	for _, l := range listings {
		if l.ID == id {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// describeListing is a one-line summary used by listing overviews.
func describeListing(views *auction.Views, l *models.Listing, now time.Time) string {
	price := views.Price(l.StartingPrice)
	if l.IsAuction {
		price = views.Price(l.CurrentBid)
	}

	status := string(l.Status)
	if l.Status == models.ListingStatusPublished && l.IsAuction && l.Deadline != nil {
		if l.Expired(now) {
			status = "awaiting decision"
		} else {
			status = "ends in " + utils.FormatDuration(l.Deadline.Sub(now))
		}
	}
	return fmt.Sprintf("`#%d` **%s** • %s • %s", l.ID, l.Name, price, status)
}
