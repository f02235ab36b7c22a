// Package settings holds the market values admins change at runtime: the
// posting prices and the card top-ups are paid to. Stored values override
// the configured defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	KeyRegularPostPrice = "regular_post_price"
	KeyAuctionPostPrice = "auction_post_price"
	KeyPaymentCard      = "payment_card"

	maxCardLength = 64
)

var ErrInvalidValue = errors.New("invalid setting value")

type Defaults struct {
	RegularPostPrice int64
	AuctionPostPrice int64
	PaymentCard      string
}

type Service struct {
	repo     repositories.SettingsRepository
	defaults Defaults
	values   *xsync.MapOf[string, string]
}

func NewService(repo repositories.SettingsRepository, defaults Defaults) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		values:   xsync.NewMapOf[string, string](),
	}
}

// Load reads the stored overrides. Until it succeeds the defaults apply.
func (s *Service) Load(ctx context.Context) error {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	for key, value := range stored {
		s.values.Store(key, value)
	}
	slog.Debug("Settings loaded",
		slog.String("type", "sys"),
		slog.Int("overrides", len(stored)))
	return nil
}

// PostFee is the price of publishing a regular or an auction listing.
func (s *Service) PostFee(isAuction bool) int64 {
	key, fallback := KeyRegularPostPrice, s.defaults.RegularPostPrice
	if isAuction {
		key, fallback = KeyAuctionPostPrice, s.defaults.AuctionPostPrice
	}

	raw, ok := s.values.Load(key)
	if !ok {
		return fallback
	}
	fee, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fee <= 0 {
		slog.Warn("Ignoring malformed stored price",
			slog.String("type", "sys"),
			slog.String("key", key),
			slog.String("value", raw))
		return fallback
	}
	return fee
}

func (s *Service) PaymentCard() string {
	if card, ok := s.values.Load(KeyPaymentCard); ok {
		return card
	}
	return s.defaults.PaymentCard
}

func (s *Service) SetPostFee(ctx context.Context, isAuction bool, amount int64, updatedBy string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidValue)
	}
	key := KeyRegularPostPrice
	if isAuction {
		key = KeyAuctionPostPrice
	}
	return s.set(ctx, key, strconv.FormatInt(amount, 10), updatedBy)
}

func (s *Service) SetPaymentCard(ctx context.Context, card, updatedBy string) error {
	card = strings.TrimSpace(card)
	if card == "" || len(card) > maxCardLength {
		return fmt.Errorf("%w: card must be 1 to %d characters", ErrInvalidValue, maxCardLength)
	}
	return s.set(ctx, KeyPaymentCard, card, updatedBy)
}

func (s *Service) set(ctx context.Context, key, value, updatedBy string) error {
	if err := s.repo.Set(ctx, key, value, updatedBy); err != nil {
		return err
	}
	s.values.Store(key, value)

	slog.Info("Setting changed",
		slog.String("type", "sys"),
		slog.String("key", key),
		slog.String("value", value),
		slog.String("updated_by", updatedBy))
	return nil
}
