// Package accounts manages user balances and operator-approved top-ups.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/events"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrUnknownUser       = errors.New("user not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentReviewed   = errors.New("payment was already reviewed")
)

type Service struct {
	users    repositories.UserRepository
	payments repositories.PaymentRepository
	bus      *events.Bus
	bonus    int64
}

func NewService(users repositories.UserRepository, payments repositories.PaymentRepository, bus *events.Bus, bonus int64) *Service {
	if bonus < 0 {
		bonus = economicUtils.NewUserBonus
	}
	return &Service{
		users:    users,
		payments: payments,
		bus:      bus,
		bonus:    bonus,
	}
}

// ResolveOrCreate returns the account of who, creating it with the new user
// bonus on first contact. The bool reports whether the account was created.
func (s *Service) ResolveOrCreate(ctx context.Context, who auction.Identity) (*models.User, bool, error) {
	user, err := s.users.GetByDiscordID(ctx, who.ID)
	if err == nil {
		return user, false, nil
	}
	if !repositories.IsNotFound(err) {
		return nil, false, fmt.Errorf("failed to get user %s: %w", who.ID, err)
	}

	user = &models.User{
		DiscordID:   who.ID,
		Username:    who.Username,
		DisplayName: who.DisplayName,
		Balance:     s.bonus,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, false, err
	}

	if created {
		slog.Info("New user registered",
			slog.String("type", "cmd"),
			slog.String("user_id", who.ID),
			slog.Int64("bonus", s.bonus))
	}
	return user, created, nil
}

func (s *Service) Account(ctx context.Context, discordID string) (*models.User, error) {
	user, err := s.users.GetByDiscordID(ctx, discordID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, discordID)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", discordID, err)
	}
	return user, nil
}

func (s *Service) Balance(ctx context.Context, discordID string) (int64, error) {
	user, err := s.Account(ctx, discordID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Debit takes amount from the balance. The balance never goes negative.
func (s *Service) Debit(ctx context.Context, discordID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.adjust(ctx, discordID, -amount)
}

func (s *Service) Credit(ctx context.Context, discordID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.adjust(ctx, discordID, amount)
}

func (s *Service) adjust(ctx context.Context, discordID string, amount int64) error {
	err := s.users.AdjustBalance(ctx, discordID, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, economicUtils.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrUnknownUser, discordID)
	default:
		return fmt.Errorf("failed to adjust balance of %s: %w", discordID, err)
	}
}

// SubmitPayment records a top-up screenshot for operator review.
func (s *Service) SubmitPayment(ctx context.Context, who auction.Identity, amount int64, screenshotURL string, draftID *uuid.UUID) (*models.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, _, err := s.ResolveOrCreate(ctx, who)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		UserID:        user.ID,
		DiscordID:     who.ID,
		Amount:        amount,
		ScreenshotURL: screenshotURL,
		Status:        models.PaymentStatusPending,
		DraftID:       draftID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	slog.Info("Payment submitted",
		slog.String("type", "cmd"),
		slog.Int64("payment_id", payment.ID),
		slog.String("user_id", who.ID),
		slog.Int64("amount", amount))
	return payment, nil
}

// ApprovePayment credits the payment amount and announces the approval.
func (s *Service) ApprovePayment(ctx context.Context, paymentID int64, reviewer string) (*models.Payment, error) {
	payment, err := s.payments.Approve(ctx, paymentID, reviewer)
	if err != nil {
		return nil, s.reviewError(paymentID, err)
	}

	slog.Info("Payment approved",
		slog.String("type", "cmd"),
		slog.Int64("payment_id", payment.ID),
		slog.String("user_id", payment.DiscordID),
		slog.String("reviewer", reviewer),
		slog.Int64("amount", payment.Amount))

	s.bus.PaymentApproved.Publish(ctx, events.PaymentApproved{
		PaymentID:  payment.ID,
		DiscordID:  payment.DiscordID,
		Amount:     payment.Amount,
		DraftID:    payment.DraftID,
		ReviewedBy: reviewer,
	})
	return payment, nil
}

func (s *Service) RejectPayment(ctx context.Context, paymentID int64, reviewer string) (*models.Payment, error) {
	payment, err := s.payments.Reject(ctx, paymentID, reviewer)
	if err != nil {
		return nil, s.reviewError(paymentID, err)
	}

	slog.Info("Payment rejected",
		slog.String("type", "cmd"),
		slog.Int64("payment_id", payment.ID),
		slog.String("reviewer", reviewer))
	return payment, nil
}

func (s *Service) PendingPayments(ctx context.Context) ([]*models.Payment, error) {
	return s.payments.GetPending(ctx)
}

func (s *Service) reviewError(paymentID int64, err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %d", ErrPaymentNotFound, paymentID)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %d", ErrPaymentReviewed, paymentID)
	default:
		return fmt.Errorf("failed to review payment %d: %w", paymentID, err)
	}
}

// Period is the approved income since the start of a calendar window.
type Period struct {
	Label string
	Since time.Time
	repositories.Totals
}

type Stats struct {
	Users        int
	TotalBalance int64
	Income       []Period
	TotalIncome  repositories.Totals
}

// Stats summarises accounts and the income of approved payments for the
// current day, week, month and year. Windows start at UTC midnight and weeks
// start on Monday.
func (s *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{Income: incomePeriods(now)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.users.Totals(ctx)
		if err != nil {
			return err
		}
		stats.Users = users.Count
		stats.TotalBalance = users.Amount
		return nil
	})
	g.Go(func() error {
		total, err := s.payments.ApprovedSince(ctx, time.Time{})
		if err != nil {
			return err
		}
		stats.TotalIncome = total
		return nil
	})
	for i := range stats.Income {
		p := &stats.Income[i]
		g.Go(func() error {
			totals, err := s.payments.ApprovedSince(ctx, p.Since)
			if err != nil {
				return err
			}
			p.Totals = totals
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

func incomePeriods(now time.Time) []Period {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	return []Period{
		{Label: "Today", Since: day},
		{Label: "This week", Since: week},
		{Label: "This month", Since: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)},
		{Label: "This year", Since: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}
