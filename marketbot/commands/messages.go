package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/flowermarket/market-bot/marketbot"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/logger"
)

// DMListener handles direct messages: photos go to the open draft and
// plain numbers are bids in the auction the author currently takes part in.
func DMListener(b *marketbot.Bot) bot.EventListener {
	l := &dmListener{b: b}
	return bot.NewListenerFunc(l.onMessage)
}

type dmListener struct {
	b *marketbot.Bot
}

func (l *dmListener) onMessage(e *events.DMMessageCreate) {
	if e.Message.Author.Bot {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	start := time.Now()
	author := identity(e.Message.Author)
	if images := imageAttachments(e.Message.Attachments); len(images) > 0 {
		l.handleMedia(ctx, e, author, images)
		logger.LogInteraction("dm", "media", author.ID, time.Since(start), nil)
		return
	}
	if amount, ok := parseBidAmount(e.Message.Content); ok {
		l.handleBid(ctx, e, author, amount)
		logger.LogInteraction("dm", "bid", author.ID, time.Since(start), nil)
	}
}

func imageAttachments(attachments []discord.Attachment) []discord.Attachment {
	var images []discord.Attachment
	for _, a := range attachments {
		if a.ContentType == nil || strings.HasPrefix(*a.ContentType, "image/") {
			images = append(images, a)
		}
	}
	return images
}

func (l *dmListener) handleMedia(ctx context.Context, e *events.DMMessageCreate, author auction.Identity, images []discord.Attachment) {
	if _, err := l.b.Drafts.OpenDraft(ctx, author.ID); err != nil {
		l.reply(e, userMessage(err))
		return
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		contentType := ""
		if img.ContentType != nil {
			contentType = *img.ContentType
		}
		url, err := l.b.Media.StoreMedia(ctx, author.ID, img.URL, contentType)
		if err != nil {
			l.reply(e, userMessage(err))
			return
		}
		urls = append(urls, url)
	}

	if _, err := l.b.Drafts.AddMedia(ctx, author.ID, urls); err != nil {
		l.reply(e, userMessage(err))
		return
	}

	// Albums arrive as several messages; acknowledge once they stop.
	channelID := e.ChannelID
	l.b.Debouncer.Trigger(author.ID, func() {
		l.ackMedia(e.Client(), channelID, author.ID)
	})
}

func (l *dmListener) ackMedia(client bot.Client, channelID snowflake.ID, ownerID string) {
	ctx, cancel := commandContext()
	defer cancel()

	draft, err := l.b.Drafts.OpenDraft(ctx, ownerID)
	if err != nil {
		return
	}
	text := fmt.Sprintf("📷 **%s** now has %d/%d photos. Run `/listing submit` when you are done.",
		draft.Name, len(draft.MediaURLs), l.b.Cfg.Market.MaxMedia)
	if _, err := client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().SetContent(text).Build()); err != nil {
		slog.Warn("Failed to acknowledge photos",
			slog.String("type", "cmd"),
			slog.String("user_id", ownerID),
			slog.Any("error", err))
	}
}

func (l *dmListener) handleBid(ctx context.Context, e *events.DMMessageCreate, bidder auction.Identity, amount int64) {
	participant, err := l.b.Engine.CurrentActiveAuction(ctx, bidder.ID)
	if errors.Is(err, auction.ErrNotFound) {
		l.reply(e, "ℹ️ You are not in an auction. Join one with `/auction join` to bid by message.")
		return
	}
	if err != nil {
		l.reply(e, userMessage(err))
		return
	}

	bid, err := l.b.Engine.SubmitBid(ctx, participant.ListingID, bidder, amount)
	if err != nil {
		l.reply(e, bidErrorMessage(ctx, l.b.Engine, participant.ListingID, err))
		return
	}
	l.reply(e, fmt.Sprintf("✅ Your bid of **%s** on auction #%d is now the highest.",
		l.b.Engine.Views().Price(bid.Amount), participant.ListingID))
}

func (l *dmListener) reply(e *events.DMMessageCreate, text string) {
	if _, err := e.Client().Rest().CreateMessage(e.ChannelID, discord.NewMessageCreateBuilder().SetContent(text).Build()); err != nil {
		slog.Warn("Failed to reply in DM",
			slog.String("type", "cmd"),
			slog.String("channel_id", e.ChannelID.String()),
			slog.Any("error", err))
	}
}

// parseBidAmount accepts "1500", "1 500", "1,500" and "1_500".
func parseBidAmount(content string) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '_', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(content))
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
