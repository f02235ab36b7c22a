// Package drafts walks a listing from its first form submission to
// publication: media collection, the posting fee, waiting for a top-up and
// resuming once the payment is approved.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/events"
	"github.com/flowermarket/market-bot/marketbot/utils"
	"github.com/google/uuid"
)

var (
	ErrNoOpenDraft     = errors.New("no draft is collecting media")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrNotDraftOwner   = errors.New("draft belongs to another user")
	ErrDraftClosed     = errors.New("draft can no longer be submitted")
	ErrDraftExpired    = errors.New("draft has expired")
	ErrTooManyMedia    = errors.New("too many media items")
	ErrInvalidDraft    = errors.New("invalid listing details")
	ErrInvalidDuration = errors.New("unsupported auction duration")
)

// Accounts is the part of the account service drafts need.
type Accounts interface {
	Account(ctx context.Context, discordID string) (*models.User, error)
	Debit(ctx context.Context, discordID string, amount int64) error
	Credit(ctx context.Context, discordID string, amount int64) error
}

type ListingStore interface {
	Create(ctx context.Context, listing *models.Listing) error
}

type Publisher interface {
	Publish(ctx context.Context, listingID int64, deadline *time.Time) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID string, msg auction.Message) error
}

// FeeSource supplies posting prices that may change while the bot runs.
type FeeSource interface {
	PostFee(isAuction bool) int64
}

type Config struct {
	RegularFee      int64
	AuctionFee      int64
	TTL             time.Duration
	MaxMedia        int
	Durations       []int
	DefaultDuration int
	Currency        string

	// Fees overrides RegularFee and AuctionFee when set.
	Fees FeeSource
}

func DefaultConfig() Config {
	return Config{
		RegularFee:      economicUtils.RegularPostPrice,
		AuctionFee:      economicUtils.AuctionPostPrice,
		TTL:             economicUtils.DraftTTL,
		MaxMedia:        economicUtils.MaxDraftMedia,
		Durations:       economicUtils.AuctionDurations,
		DefaultDuration: economicUtils.DefaultAuctionMinutes,
		Currency:        economicUtils.DefaultCurrency,
	}
}

type StartInput struct {
	IsAuction       bool
	Name            string
	Description     string
	Price           int64
	Phone           string
	Location        string
	DurationMinutes int
}

type SubmitResult struct {
	Draft   *models.ListingDraft
	Listing *models.Listing
	ViewRef string
	Fee     int64
	// Shortfall is set when the draft is waiting for a top-up.
	Shortfall int64
}

func (r *SubmitResult) Published() bool {
	return r.Listing != nil
}

type Service struct {
	drafts    repositories.DraftRepository
	listings  ListingStore
	accounts  Accounts
	publisher Publisher
	notifier  Notifier
	cfg       Config
	now       func() time.Time
}

func NewService(drafts repositories.DraftRepository, listings ListingStore, accounts Accounts, publisher Publisher, notifier Notifier, cfg Config) *Service {
	return &Service{
		drafts:    drafts,
		listings:  listings,
		accounts:  accounts,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Subscribe resumes drafts when their top-up gets approved.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.PaymentApproved.Subscribe(s.HandlePaymentApproved)
}

func (s *Service) Fee(isAuction bool) int64 {
	if s.cfg.Fees != nil {
		return s.cfg.Fees.PostFee(isAuction)
	}
	if isAuction {
		return s.cfg.AuctionFee
	}
	return s.cfg.RegularFee
}

// Start opens a new draft collecting media. Other open drafts of the owner are cancelled.
func (s *Service) Start(ctx context.Context, owner auction.Identity, input StartInput) (*models.ListingDraft, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	if n, err := s.drafts.CancelOpenByOwner(ctx, owner.ID); err != nil {
		return nil, err
	} else if n > 0 {
		slog.Debug("Cancelled previous drafts",
			slog.String("type", "cmd"),
			slog.String("owner_id", owner.ID),
			slog.Int("count", n))
	}

	now := s.now()
	draft := &models.ListingDraft{
		ID:              uuid.New(),
		OwnerID:         owner.ID,
		OwnerHandle:     owner.Username,
		IsAuction:       input.IsAuction,
		Name:            input.Name,
		Description:     input.Description,
		Price:           input.Price,
		Phone:           input.Phone,
		Location:        input.Location,
		DurationMinutes: input.DurationMinutes,
		Status:          models.DraftStatusCollecting,
		RequiredFee:     s.Fee(input.IsAuction),
		ExpiresAt:       now.Add(s.cfg.TTL),
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, err
	}

	slog.Info("Draft started",
		slog.String("type", "cmd"),
		slog.String("draft_id", draft.ID.String()),
		slog.String("owner_id", owner.ID),
		slog.Bool("auction", draft.IsAuction))
	return draft, nil
}

func (s *Service) validate(input *StartInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDraft)
	}
	if input.Price < economicUtils.MinBidAmount || input.Price > economicUtils.MaxBidAmount {
		return fmt.Errorf("%w: price out of range", ErrInvalidDraft)
	}
	if !input.IsAuction {
		input.DurationMinutes = 0
		return nil
	}
	if input.DurationMinutes == 0 {
		input.DurationMinutes = s.cfg.DefaultDuration
	}
	if !slices.Contains(s.cfg.Durations, input.DurationMinutes) {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, input.DurationMinutes)
	}
	return nil
}

// OpenDraft returns the owner's draft that is collecting media.
func (s *Service) OpenDraft(ctx context.Context, ownerID string) (*models.ListingDraft, error) {
	draft, err := s.drafts.GetOpenByOwner(ctx, ownerID, models.DraftStatusCollecting)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrNoOpenDraft
		}
		return nil, err
	}
	if !s.now().Before(draft.ExpiresAt) {
		return nil, ErrNoOpenDraft
	}
	return draft, nil
}

// Current returns the owner's draft that can still be submitted, preferring
// one that is collecting media over one waiting for a top-up.
func (s *Service) Current(ctx context.Context, ownerID string) (*models.ListingDraft, error) {
	draft, err := s.OpenDraft(ctx, ownerID)
	if !errors.Is(err, ErrNoOpenDraft) {
		return draft, err
	}

	draft, err = s.drafts.GetOpenByOwner(ctx, ownerID, models.DraftStatusAwaitingPayment)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrNoOpenDraft
		}
		return nil, err
	}
	if !s.now().Before(draft.ExpiresAt) {
		return nil, ErrNoOpenDraft
	}
	return draft, nil
}

// AddMedia appends uploaded media urls to the owner's collecting draft.
func (s *Service) AddMedia(ctx context.Context, ownerID string, urls []string) (*models.ListingDraft, error) {
	draft, err := s.OpenDraft(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(draft.MediaURLs)+len(urls) > s.cfg.MaxMedia {
		return draft, fmt.Errorf("%w: at most %d", ErrTooManyMedia, s.cfg.MaxMedia)
	}

	draft.MediaURLs = append(draft.MediaURLs, urls...)
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Submit charges the posting fee and publishes the draft. When the balance is
// short the draft waits for a top-up and the result carries the shortfall.
func (s *Service) Submit(ctx context.Context, draftID uuid.UUID, ownerID string) (*SubmitResult, error) {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	if draft.OwnerID != ownerID {
		return nil, ErrNotDraftOwner
	}
	if !draft.Status.Open() {
		return nil, ErrDraftClosed
	}
	if !s.now().Before(draft.ExpiresAt) {
		return nil, ErrDraftExpired
	}

	// claim the draft so a concurrent submit cannot charge twice
	previous := draft.Status
	claimed, err := s.drafts.Transition(ctx, draft.ID, previous, models.DraftStatusPublished)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDraftClosed
	}

	result, err := s.publish(ctx, draft)
	if err != nil {
		if _, rerr := s.drafts.Transition(ctx, draft.ID, models.DraftStatusPublished, previous); rerr != nil {
			s.logReleaseFailure(draft, rerr)
		}
		return nil, err
	}
	if !result.Published() {
		if _, rerr := s.drafts.AwaitPayment(ctx, draft.ID, result.Fee); rerr != nil {
			s.logReleaseFailure(draft, rerr)
		}
		draft.Status = models.DraftStatusAwaitingPayment
		draft.RequiredFee = result.Fee
		return result, nil
	}

	draft.Status = models.DraftStatusPublished
	draft.ListingID = &result.Listing.ID
	if err := s.drafts.Update(ctx, draft); err != nil {
		slog.Error("Failed to link draft to its listing",
			slog.String("type", "error"),
			slog.String("draft_id", draft.ID.String()),
			slog.Int64("listing_id", result.Listing.ID),
			slog.Any("error", err))
	}
	return result, nil
}

func (s *Service) logReleaseFailure(draft *models.ListingDraft, err error) {
	slog.Error("Failed to release draft",
		slog.String("type", "error"),
		slog.String("draft_id", draft.ID.String()),
		slog.Any("error", err))
}

func (s *Service) publish(ctx context.Context, draft *models.ListingDraft) (*SubmitResult, error) {
	fee := s.Fee(draft.IsAuction)
	result := &SubmitResult{Draft: draft, Fee: fee}

	user, err := s.accounts.Account(ctx, draft.OwnerID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Debit(ctx, draft.OwnerID, fee); err != nil {
		if !errors.Is(err, accounts.ErrInsufficientFunds) {
			return nil, err
		}
		result.Shortfall = fee - user.Balance
		if result.Shortfall <= 0 {
			result.Shortfall = fee
		}
		return result, nil
	}

	listing := &models.Listing{
		OwnerUserID:   user.ID,
		OwnerID:       draft.OwnerID,
		OwnerHandle:   draft.OwnerHandle,
		Name:          draft.Name,
		Description:   draft.Description,
		Phone:         draft.Phone,
		Location:      draft.Location,
		MediaURLs:     draft.MediaURLs,
		IsAuction:     draft.IsAuction,
		StartingPrice: draft.Price,
		Status:        models.ListingStatusPending,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		s.refund(ctx, draft, fee)
		return nil, err
	}

	var deadline *time.Time
	if draft.IsAuction {
		d := s.now().Add(time.Duration(draft.DurationMinutes) * time.Minute)
		deadline = &d
	}

	viewRef, err := s.publisher.Publish(ctx, listing.ID, deadline)
	if err != nil {
		s.refund(ctx, draft, fee)
		return nil, fmt.Errorf("failed to publish listing %d: %w", listing.ID, err)
	}

	listing.Status = models.ListingStatusPublished
	listing.ViewRef = viewRef
	listing.Deadline = deadline
	result.Listing = listing
	result.ViewRef = viewRef

	slog.Info("Draft published",
		slog.String("type", "cmd"),
		slog.String("draft_id", draft.ID.String()),
		slog.Int64("listing_id", listing.ID),
		slog.Int64("fee", fee))
	return result, nil
}

func (s *Service) refund(ctx context.Context, draft *models.ListingDraft, fee int64) {
	if err := s.accounts.Credit(ctx, draft.OwnerID, fee); err != nil {
		slog.Error("Failed to refund posting fee",
			slog.String("type", "error"),
			slog.String("draft_id", draft.ID.String()),
			slog.String("owner_id", draft.OwnerID),
			slog.Int64("fee", fee),
			slog.Any("error", err))
	}
}

func (s *Service) Cancel(ctx context.Context, draftID uuid.UUID, ownerID string) error {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ErrDraftNotFound
		}
		return err
	}
	if draft.OwnerID != ownerID {
		return ErrNotDraftOwner
	}

	if !draft.Status.Open() {
		return ErrDraftClosed
	}

	ok, err := s.drafts.Transition(ctx, draft.ID, draft.Status, models.DraftStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDraftClosed
	}
	return nil
}

// HandlePaymentApproved resumes the owner's draft waiting for a top-up.
func (s *Service) HandlePaymentApproved(ctx context.Context, event events.PaymentApproved) {
	draft, err := s.awaitingDraft(ctx, event)
	if err != nil {
		if !errors.Is(err, ErrDraftNotFound) {
			slog.Error("Failed to load draft for approved payment",
				slog.String("type", "error"),
				slog.Int64("payment_id", event.PaymentID),
				slog.Any("error", err))
		}
		return
	}

	result, err := s.Submit(ctx, draft.ID, draft.OwnerID)
	var msg auction.Message
	switch {
	case err != nil:
		slog.Error("Failed to publish draft after payment",
			slog.String("type", "error"),
			slog.String("draft_id", draft.ID.String()),
			slog.Any("error", err))
		msg = auction.Message{
			Title: "❌ Publishing failed",
			Text:  fmt.Sprintf("Your payment was approved but **%s** could not be published. Try `/listing submit` again.", draft.Name),
		}
	case result.Published():
		msg = auction.Message{
			Title: "✅ Listing published",
			Text:  fmt.Sprintf("Your payment was approved and **%s** is now live.", draft.Name),
		}
	default:
		msg = auction.Message{
			Title: "💳 Payment approved",
			Text: fmt.Sprintf("Your balance is still short by **%s** to publish **%s**.",
				utils.FormatPrice(result.Shortfall, s.cfg.Currency), draft.Name),
		}
	}

	if err := s.notifier.Notify(ctx, draft.OwnerID, msg); err != nil {
		slog.Warn("Failed to notify draft owner",
			slog.String("type", "cmd"),
			slog.String("owner_id", draft.OwnerID),
			slog.Any("error", err))
	}
}

func (s *Service) awaitingDraft(ctx context.Context, event events.PaymentApproved) (*models.ListingDraft, error) {
	var (
		draft *models.ListingDraft
		err   error
	)
	if event.DraftID != nil {
		draft, err = s.drafts.GetByID(ctx, *event.DraftID)
	} else {
		draft, err = s.drafts.GetOpenByOwner(ctx, event.DiscordID, models.DraftStatusAwaitingPayment)
	}
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	if draft.OwnerID != event.DiscordID || draft.Status != models.DraftStatusAwaitingPayment {
		return nil, ErrDraftNotFound
	}
	return draft, nil
}

// ExpireStale closes drafts that outlived their TTL.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.drafts.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Expired stale drafts",
			slog.String("type", "sys"),
			slog.Int("count", n))
	}
	return n, nil
}
