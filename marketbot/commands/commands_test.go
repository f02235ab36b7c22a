package commands

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	"github.com/flowermarket/market-bot/marketbot/economy/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"stale bid", auction.ErrStaleBid, "❌ Your bid must be higher than the current price."},
		{"wrapped", fmt.Errorf("bid on listing 4: %w", auction.ErrAuctionExpired), "❌ This auction's time is over."},
		{"funds", accounts.ErrInsufficientFunds, "❌ Your balance is too low."},
		{"draft", drafts.ErrNoOpenDraft, "❌ You have no listing in progress. Start one with `/listing create`."},
		{"admin", errNotAdmin, "❌ This command is for market admins only."},
		{"setting", fmt.Errorf("%w: price must be positive", settings.ErrInvalidValue), "❌ Prices must be positive and card numbers at most 64 characters."},
		{"already published", fmt.Errorf("publish listing 3: %w", auction.ErrNotPending), "❌ This listing was already published."},
		{"deadline", auction.ErrInvalidDeadline, "❌ The auction deadline must be in the future."},
		{"unknown", fmt.Errorf("connection reset"), "❌ Something went wrong. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}

func TestParseBidAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1500", 1500, true},
		{" 1 500 ", 1500, true},
		{"1,500,000", 1500000, true},
		{"10_000", 10000, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"", 0, false},
		{"hello", 0, false},
		{"15k", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseBidAmount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testListings(now time.Time) []*models.Listing {
	future := now.Add(2 * time.Hour)
	past := now.Add(-time.Minute)
	return []*models.Listing{
		{ID: 7, Name: "Tulips", IsAuction: true, CurrentBid: 150000, Status: models.ListingStatusPublished, Deadline: &future},
		{ID: 8, Name: "Red roses", IsAuction: true, CurrentBid: 90000, Status: models.ListingStatusPublished, Deadline: &future},
		{ID: 9, Name: "Old lilies", IsAuction: true, CurrentBid: 5000, Status: models.ListingStatusPublished, Deadline: &past},
	}
}

func choiceValues(choices []discord.AutocompleteChoice) []string {
	values := make([]string, 0, len(choices))
	for _, c := range choices {
		values = append(values, c.(discord.AutocompleteChoiceString).Value)
	}
	return values
}

func TestListingChoices(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	views := &auction.Views{Currency: "so'm"}
	listings := testListings(now)

	t.Run("empty query lists open auctions", func(t *testing.T) {
		choices := listingChoices(views, listings, "", now)
		assert.Equal(t, []string{"7", "8"}, choiceValues(choices))
	})

	t.Run("fuzzy name match", func(t *testing.T) {
		choices := listingChoices(views, listings, "lips", now)
		require.Len(t, choices, 1)
		c := choices[0].(discord.AutocompleteChoiceString)
		assert.Equal(t, "7", c.Value)
		assert.Equal(t, "#7 Tulips • 150 000 so'm", c.Name)
	})

	t.Run("listing number", func(t *testing.T) {
		choices := listingChoices(views, listings, "#8", now)
		assert.Equal(t, []string{"8"}, choiceValues(choices))
	})

	t.Run("expired auctions are hidden", func(t *testing.T) {
		assert.Empty(t, listingChoices(views, listings, "9", now))
	})

	t.Run("capped", func(t *testing.T) {
		future := now.Add(time.Hour)
		many := make([]*models.Listing, 0, 40)
		for i := 1; i <= 40; i++ {
			many = append(many, &models.Listing{ID: int64(i), Name: "Peony", IsAuction: true, Deadline: &future})
		}
		assert.Len(t, listingChoices(views, many, "", now), 25)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "🌷🌷…", truncate("🌷🌷🌷🌷", 3))
}

func TestDescribeListing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	views := &auction.Views{Currency: "so'm"}
	deadline := now.Add(2*time.Hour + 15*time.Minute)
	passed := now.Add(-time.Minute)

	tests := []struct {
		name    string
		listing *models.Listing
		want    string
	}{
		{
			name: "running auction",
			listing: &models.Listing{ID: 7, Name: "Tulips", IsAuction: true, StartingPrice: 100000, CurrentBid: 150000,
				Status: models.ListingStatusPublished, Deadline: &deadline},
			want: "`#7` **Tulips** • 150 000 so'm • ends in 2h 15m",
		},
		{
			name: "expired auction",
			listing: &models.Listing{ID: 7, Name: "Tulips", IsAuction: true, CurrentBid: 150000,
				Status: models.ListingStatusPublished, Deadline: &passed},
			want: "`#7` **Tulips** • 150 000 so'm • awaiting decision",
		},
		{
			name:    "regular listing",
			listing: &models.Listing{ID: 3, Name: "Orchid", StartingPrice: 80000, Status: models.ListingStatusPublished},
			want:    "`#3` **Orchid** • 80 000 so'm • published",
		},
		{
			name:    "sold",
			listing: &models.Listing{ID: 4, Name: "Peony", IsAuction: true, CurrentBid: 9000, Status: models.ListingStatusSold, Deadline: &passed},
			want:    "`#4` **Peony** • 9 000 so'm • sold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeListing(views, tt.listing, now))
		})
	}
}

func TestDurationChoices(t *testing.T) {
	choices := durationChoices([]int{30, 90, 720})
	require.Len(t, choices, 3)
	assert.Equal(t, discord.ApplicationCommandOptionChoiceInt{Name: "30m", Value: 30}, choices[0])
	assert.Equal(t, discord.ApplicationCommandOptionChoiceInt{Name: "1h 30m", Value: 90}, choices[1])
	assert.Equal(t, discord.ApplicationCommandOptionChoiceInt{Name: "12h 0m", Value: 720}, choices[2])
}

func TestImageAttachments(t *testing.T) {
	png, pdf := "image/png", "application/pdf"
	got := imageAttachments([]discord.Attachment{
		{URL: "https://cdn/a.png", ContentType: &png},
		{URL: "https://cdn/b.pdf", ContentType: &pdf},
		{URL: "https://cdn/c"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "https://cdn/a.png", got[0].URL)
	assert.Equal(t, "https://cdn/c", got[1].URL)
}

func TestPaymentPage(t *testing.T) {
	created := time.Unix(1767225600, 0)
	draftID := uuid.New()
	payments := []*models.Payment{
		{ID: 1, DiscordID: "100", Amount: 50000, ScreenshotURL: "https://cdn/1.png", CreatedAt: created},
		{ID: 2, DiscordID: "200", Amount: 7500, ScreenshotURL: "https://cdn/2.png", CreatedAt: created, DraftID: &draftID},
	}

	page := paymentPage(payments, 0, "so'm")
	lines := strings.Split(strings.TrimSpace(page), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "`#1` **50 000 so'm** • <@100> • <t:1767225600:R>", lines[0])
	assert.Equal(t, "[receipt](https://cdn/1.png)", lines[1])
	assert.Equal(t, "`#2` **7 500 so'm** • <@200> • <t:1767225600:R> • for a listing", lines[2])
}

func TestStatsText(t *testing.T) {
	now := time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC)
	stats := &accounts.Stats{
		Users:        120,
		TotalBalance: 3400000,
		Income: []accounts.Period{
			{Label: "Today", Totals: repositories.Totals{Count: 2, Amount: 100000}},
			{Label: "This week", Totals: repositories.Totals{Count: 5, Amount: 250000}},
		},
		TotalIncome: repositories.Totals{Count: 40, Amount: 2000000},
	}

	text := statsText(stats, marketSettings{regularFee: 30000, auctionFee: 40000}, "so'm", now)
	assert.Contains(t, text, "Users: **120**")
	assert.Contains(t, text, "Balances held: **3 400 000 so'm**")
	assert.Contains(t, text, "(05.03.2026 UTC)")
	assert.Contains(t, text, "Today: **100 000 so'm** • 2 payments")
	assert.Contains(t, text, "This week: **250 000 so'm** • 5 payments")
	assert.Contains(t, text, "All time: **2 000 000 so'm** • 40 payments")
	assert.Contains(t, text, "Auction post: 40 000 so'm")
	assert.Contains(t, text, "Card: not set")

	text = statsText(stats, marketSettings{card: "9860 1111 2222 3333"}, "so'm", now)
	assert.Contains(t, text, "Card: 9860 1111 2222 3333")
}
