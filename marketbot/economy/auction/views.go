package auction

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/utils"
)

// Views renders listings into transport-neutral views and messages.
type Views struct {
	Currency string
}

func (v *Views) Price(amount int64) string {
	return utils.FormatPrice(amount, v.Currency)
}

func (v *Views) Public(l *models.Listing, bidders int, now time.Time) View {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", l.Name)
	if l.Description != "" {
		fmt.Fprintf(&b, "%s\n", l.Description)
	}
	b.WriteString("\n")

	if !l.IsAuction {
		fmt.Fprintf(&b, "💰 Price: **%s**\n", v.Price(l.StartingPrice))
		v.writeLocation(&b, l)
		if l.OwnerHandle != "" {
			fmt.Fprintf(&b, "👤 Seller: @%s\n", l.OwnerHandle)
		}
		return View{
			Title:    "🛒 For sale",
			Text:     b.String(),
			ImageURL: l.CoverURL(),
			Color:    config.InfoColor,
		}
	}

	fmt.Fprintf(&b, "💰 Starting price: %s\n", v.Price(l.StartingPrice))
	fmt.Fprintf(&b, "📈 Current price: **%s**\n", v.Price(l.CurrentBid))
	fmt.Fprintf(&b, "🔨 Bids: %d\n", l.BidCount)
	fmt.Fprintf(&b, "👥 Participants: %d\n", bidders)
	v.writeLocation(&b, l)
	if l.Deadline != nil {
		if l.Expired(now) {
			b.WriteString("⏰ Time is up\n")
		} else {
			fmt.Fprintf(&b, "⏰ Ends in %s (<t:%d:R>)\n", utils.FormatDuration(l.Deadline.Sub(now)), l.Deadline.Unix())
		}
	}

	return View{
		Title:    "🔨 Auction",
		Text:     b.String(),
		ImageURL: l.CoverURL(),
		Color:    config.BackgroundColor,
		Controls: []Control{
			{Kind: ControlJoin, Label: "Join", ListingID: l.ID},
			{Kind: ControlLeave, Label: "Leave", ListingID: l.ID},
		},
	}
}

func (v *Views) writeLocation(b *strings.Builder, l *models.Listing) {
	if l.Location != "" {
		fmt.Fprintf(b, "📍 Location: %s\n", l.Location)
	}
}

// Sold is the final public view. The buyer is never shown publicly.
func (v *Views) Sold(l *models.Listing, amount int64) View {
	return View{
		Title:    "✅ Sold",
		Text:     fmt.Sprintf("**%s**\n\nFinal price: **%s**", l.Name, v.Price(amount)),
		ImageURL: l.CoverURL(),
		Color:    config.SoldColor,
	}
}

func (v *Views) Ended(l *models.Listing) View {
	text := fmt.Sprintf("**%s**\n\nThis listing is closed.", l.Name)
	if l.IsAuction && l.BidCount == 0 {
		text = fmt.Sprintf("**%s**\n\nThe auction ended without bids.", l.Name)
	}
	return View{
		Title:    "🏁 Ended",
		Text:     text,
		ImageURL: l.CoverURL(),
		Color:    config.ErrorColor,
	}
}

func (v *Views) AwaitingDecision(l *models.Listing) View {
	return View{
		Title: "⏳ Time is up",
		Text: fmt.Sprintf("**%s**\n\nHighest bid: **%s**\nWaiting for the seller's decision.",
			l.Name, v.Price(l.CurrentBid)),
		ImageURL: l.CoverURL(),
		Color:    config.WarningColor,
	}
}

// Withdrawn replaces a view that was posted for a listing that failed to publish.
func (v *Views) Withdrawn(l *models.Listing) View {
	return View{
		Title: "Withdrawn",
		Text:  fmt.Sprintf("**%s** is no longer available.", l.Name),
		Color: config.ErrorColor,
	}
}

func (v *Views) Joined(l *models.Listing) Message {
	return Message{
		Title: "🔨 You joined the auction",
		Text: fmt.Sprintf("**%s**\nCurrent price: **%s**\n\nSend an amount higher than the current price to place a bid.",
			l.Name, v.Price(l.CurrentBid)),
		Controls: []Control{{Kind: ControlLeave, Label: "Leave", ListingID: l.ID}},
	}
}

func (v *Views) BidAccepted(l *models.Listing, bid *models.AuctionBid) Message {
	return Message{
		Title: "✅ Bid accepted",
		Text:  fmt.Sprintf("Your bid of **%s** on **%s** is now the highest.", v.Price(bid.Amount), l.Name),
	}
}

func (v *Views) OwnerNewBid(l *models.Listing, bid *models.AuctionBid) Message {
	return Message{
		Title: "🔔 New bid",
		Text: fmt.Sprintf("%s bid **%s** on **%s** (%d bids so far).",
			bid.Name(), v.Price(bid.Amount), l.Name, l.BidCount),
		Controls: []Control{
			{Kind: ControlSell, Label: "Sell for " + v.Price(bid.Amount), ListingID: l.ID, BidID: bid.ID},
			{Kind: ControlEnd, Label: "End auction", ListingID: l.ID},
		},
	}
}

func (v *Views) NewLeader(l *models.Listing, bid *models.AuctionBid) Message {
	return Message{
		Title: "📈 New highest bid",
		Text: fmt.Sprintf("%s bid **%s** on **%s**. Send a higher amount to take the lead.",
			bid.Name(), v.Price(bid.Amount), l.Name),
	}
}

func (v *Views) NewParticipant(l *models.Listing, who string, total int) Message {
	return Message{
		Title: "➕ New participant",
		Text:  fmt.Sprintf("%s joined the auction **%s**. %d participants now.", who, l.Name, total),
	}
}

func (v *Views) Left(l *models.Listing, who string, remaining int) Message {
	return Message{
		Title: "👋 Participant left",
		Text:  fmt.Sprintf("%s left the auction **%s**. %d participants remaining.", who, l.Name, remaining),
	}
}

func (v *Views) Winner(l *models.Listing, bid *models.AuctionBid) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "You won **%s** for **%s**.\n\n", l.Name, v.Price(bid.Amount))
	if l.OwnerHandle != "" {
		fmt.Fprintf(&b, "👤 Seller: @%s\n", l.OwnerHandle)
	}
	if l.Phone != "" {
		fmt.Fprintf(&b, "📞 Phone: %s\n", l.Phone)
	}
	v.writeLocation(&b, l)
	return Message{Title: "🎉 Congratulations", Text: b.String()}
}

func (v *Views) BuyerInfo(l *models.Listing, bid *models.AuctionBid) Message {
	buyer := bid.Name()
	if bid.Username != "" {
		buyer = "@" + bid.Username
	}
	return Message{
		Title: "✅ Sold",
		Text:  fmt.Sprintf("**%s** sold for **%s**.\nBuyer: %s", l.Name, v.Price(bid.Amount), buyer),
	}
}

func (v *Views) Closed(l *models.Listing, amount int64) Message {
	return Message{
		Title: "🏁 Auction closed",
		Text:  fmt.Sprintf("**%s** was sold for **%s**.", l.Name, v.Price(amount)),
	}
}

func (v *Views) EndedNotice(l *models.Listing) Message {
	return Message{
		Title: "🏁 Auction ended",
		Text:  fmt.Sprintf("The auction **%s** was ended without a sale.", l.Name),
	}
}

func (v *Views) ForceEnded(l *models.Listing) Message {
	return Message{
		Title: "🛑 Listing closed",
		Text:  fmt.Sprintf("Your listing **%s** was closed by an administrator.", l.Name),
	}
}

func (v *Views) NoBids(l *models.Listing) Message {
	return Message{
		Title: "⏰ Auction ended",
		Text:  fmt.Sprintf("The auction **%s** ended without bids.", l.Name),
	}
}

func (v *Views) ExpiryPrompt(l *models.Listing, leader *models.AuctionBid) Message {
	msg := Message{
		Title: "⏰ Time is up",
		Text: fmt.Sprintf("The auction **%s** reached its deadline. Highest bid: **%s** by %s.\nSell to the highest bidder or end the auction.",
			l.Name, v.Price(leader.Amount), leader.Name()),
		Controls: []Control{
			{Kind: ControlSell, Label: "Sell for " + v.Price(leader.Amount), ListingID: l.ID, BidID: leader.ID},
			{Kind: ControlEnd, Label: "End auction", ListingID: l.ID},
		},
	}
	return msg
}

func (v *Views) AwaitingParticipants(l *models.Listing) Message {
	return Message{
		Title: "⏳ Time is up",
		Text:  fmt.Sprintf("Bidding on **%s** is over. The seller is deciding.", l.Name),
	}
}
