package marketbot

import (
	"context"
	"io"
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/database"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	"github.com/flowermarket/market-bot/marketbot/economy/settings"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/events"
	"github.com/flowermarket/market-bot/marketbot/logger"
	"github.com/flowermarket/market-bot/marketbot/services"
	"github.com/flowermarket/market-bot/marketbot/utils"
)

// NewLogHandler builds the slog handler selected by the [log] section.
func NewLogHandler(out io.Writer, cfg LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return logger.NewHandler(out, opts)
}

// InitServices builds the repositories and domain services on top of db.
// The messenger is created by the caller so that the CLI can reuse it
// without opening a gateway connection.
func (b *Bot) InitServices(db *database.DB, messenger auction.Messenger) {
	b.DB = db
	b.Messenger = messenger

	bunDB := db.BunDB()
	b.Listings = repositories.NewListingRepository(bunDB)

	bus := events.NewBus()
	b.Engine = auction.NewEngine(b.Listings, messenger,
		auction.WithCurrency(b.Cfg.Market.Currency),
		auction.WithNotifyConcurrency(b.Cfg.Auction.NotifyConcurrency))
	b.Accounts = accounts.NewService(
		repositories.NewUserRepository(bunDB),
		repositories.NewPaymentRepository(bunDB),
		bus,
		b.Cfg.Market.NewUserBonus)
	b.Settings = settings.NewService(repositories.NewSettingsRepository(bunDB), settings.Defaults{
		RegularPostPrice: b.Cfg.Market.RegularPostPrice,
		AuctionPostPrice: b.Cfg.Market.AuctionPostPrice,
		PaymentCard:      b.Cfg.Market.PaymentCard,
	})

	draftCfg := b.Cfg.Drafts()
	draftCfg.Fees = b.Settings
	b.Drafts = drafts.NewService(
		repositories.NewDraftRepository(bunDB),
		b.Listings,
		b.Accounts,
		b.Engine,
		messenger,
		draftCfg)
	b.Drafts.Subscribe(bus)

	b.Debouncer = utils.NewDebouncer(b.Cfg.Market.MediaDebounce.Duration)
}

// LoadSettings applies the prices and payment card admins stored at runtime.
func (b *Bot) LoadSettings(ctx context.Context) error {
	return b.Settings.Load(ctx)
}

// InitMedia selects where listing photos and receipts are kept.
func (b *Bot) InitMedia(ctx context.Context) error {
	if !b.Cfg.Spaces.Enabled() {
		slog.Info("Spaces not configured, keeping Discord attachment URLs",
			slog.String("type", "sys"))
		b.Media = services.PassthroughMedia{}
		return nil
	}

	spaces, err := services.NewSpacesService(ctx,
		b.Cfg.Spaces.Key,
		b.Cfg.Spaces.Secret,
		b.Cfg.Spaces.Region,
		b.Cfg.Spaces.Bucket,
		b.Cfg.Spaces.MediaRoot,
	)
	if err != nil {
		return err
	}
	b.Media = spaces
	return nil
}

// StartBackground starts the deadline sweep and the draft expiry loop.
func (b *Bot) StartBackground(ctx context.Context) *utils.BackgroundProcessManager {
	b.Processes = utils.NewBackgroundProcessManager(ctx)

	auction.NewScheduler(b.Engine, b.Cfg.Auction.SweepInterval.Duration).Start(b.Processes)
	b.Processes.StartTicker("draft-expiry", "expires drafts that were never published", economicUtils.DraftCleanupInterval, func(ctx context.Context) {
		n, err := b.Drafts.ExpireStale(ctx)
		if err != nil {
			logger.LogError("Draft expiry failed", err)
			return
		}
		if n > 0 {
			logger.LogSystem("Expired stale drafts", slog.Int("count", n))
		}
	})
	return b.Processes
}
