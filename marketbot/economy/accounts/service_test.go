package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/flowermarket/market-bot/marketbot/database/repositories/mock"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	users    *mock.MockUserRepository
	payments *mock.MockPaymentRepository
	bus      *events.Bus
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		users:    mock.NewMockUserRepository(ctrl),
		payments: mock.NewMockPaymentRepository(ctrl),
		bus:      events.NewBus(),
	}
	f.service = NewService(f.users, f.payments, f.bus, economicUtils.NewUserBonus)
	return f
}

func TestService_ResolveOrCreate(t *testing.T) {
	ctx := context.Background()
	who := auction.Identity{ID: "42", Username: "flora"}

	t.Run("existing user", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().
			GetByDiscordID(gomock.Any(), "42").
			Return(&models.User{ID: 1, DiscordID: "42", Balance: 500}, nil)

		user, created, err := f.service.ResolveOrCreate(ctx, who)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, int64(500), user.Balance)
	})

	t.Run("new user gets the bonus", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().
			GetByDiscordID(gomock.Any(), "42").
			Return(nil, &repositories.NotFoundError{Entity: "user", ID: "42"})
		f.users.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *models.User) (bool, error) {
				require.Equal(t, int64(economicUtils.NewUserBonus), u.Balance)
				require.Equal(t, "flora", u.Username)
				u.ID = 7
				return true, nil
			})

		user, created, err := f.service.ResolveOrCreate(ctx, who)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, int64(7), user.ID)
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().
			GetByDiscordID(gomock.Any(), "42").
			Return(nil, errors.New("connection reset"))

		_, _, err := f.service.ResolveOrCreate(ctx, who)
		require.Error(t, err)
	})
}

func TestService_Debit(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		repoErr error
		wantErr error
	}{
		{name: "success", amount: 40000},
		{name: "insufficient", amount: 40000, repoErr: economicUtils.ErrInsufficientBalance, wantErr: ErrInsufficientFunds},
		{name: "unknown user", amount: 40000, repoErr: &repositories.NotFoundError{Entity: "user", ID: "42"}, wantErr: ErrUnknownUser},
		{name: "zero", amount: 0, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.amount > 0 {
				f.users.EXPECT().
					AdjustBalance(gomock.Any(), "42", -tt.amount).
					Return(tt.repoErr)
			}

			err := f.service.Debit(context.Background(), "42", tt.amount)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Credit(t *testing.T) {
	f := newFixture(t)
	f.users.EXPECT().AdjustBalance(gomock.Any(), "42", int64(30000)).Return(nil)

	require.NoError(t, f.service.Credit(context.Background(), "42", 30000))
	require.ErrorIs(t, f.service.Credit(context.Background(), "42", -1), ErrInvalidAmount)
}

func TestService_ApprovePaymentPublishesEvent(t *testing.T) {
	f := newFixture(t)
	draftID := uuid.New()

	f.payments.EXPECT().
		Approve(gomock.Any(), int64(3), "admin").
		Return(&models.Payment{ID: 3, DiscordID: "42", Amount: 50000, DraftID: &draftID, Status: models.PaymentStatusApproved}, nil)

	var got []events.PaymentApproved
	f.bus.PaymentApproved.Subscribe(func(_ context.Context, e events.PaymentApproved) {
		got = append(got, e)
	})

	payment, err := f.service.ApprovePayment(context.Background(), 3, "admin")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusApproved, payment.Status)

	require.Len(t, got, 1)
	require.Equal(t, "42", got[0].DiscordID)
	require.Equal(t, int64(50000), got[0].Amount)
	require.Equal(t, draftID, *got[0].DraftID)
}

func TestService_ReviewErrors(t *testing.T) {
	f := newFixture(t)

	f.payments.EXPECT().
		Approve(gomock.Any(), int64(3), "admin").
		Return(nil, &repositories.ConflictError{Entity: "payment", Field: "status", Value: models.PaymentStatusApproved})
	f.payments.EXPECT().
		Reject(gomock.Any(), int64(9), "admin").
		Return(nil, &repositories.NotFoundError{Entity: "payment", ID: int64(9)})

	fired := false
	f.bus.PaymentApproved.Subscribe(func(context.Context, events.PaymentApproved) { fired = true })

	_, err := f.service.ApprovePayment(context.Background(), 3, "admin")
	require.ErrorIs(t, err, ErrPaymentReviewed)
	require.False(t, fired)

	_, err = f.service.RejectPayment(context.Background(), 9, "admin")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestService_SubmitPayment(t *testing.T) {
	f := newFixture(t)
	who := auction.Identity{ID: "42", Username: "flora"}

	f.users.EXPECT().
		GetByDiscordID(gomock.Any(), "42").
		Return(&models.User{ID: 1, DiscordID: "42"}, nil)
	f.payments.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *models.Payment) error {
			require.Equal(t, models.PaymentStatusPending, p.Status)
			require.Equal(t, int64(1), p.UserID)
			p.ID = 11
			return nil
		})

	payment, err := f.service.SubmitPayment(context.Background(), who, 50000, "https://cdn.example.com/receipt.png", nil)
	require.NoError(t, err)
	require.Equal(t, int64(11), payment.ID)

	_, err = f.service.SubmitPayment(context.Background(), who, 0, "", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t)
	// a Thursday afternoon
	now := time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC)

	income := map[time.Time]repositories.Totals{
		{}: {Count: 40, Amount: 2000000},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC): {Count: 30, Amount: 1500000},
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC): {Count: 9, Amount: 450000},
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC): {Count: 5, Amount: 250000},
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC): {Count: 2, Amount: 100000},
	}

	f.users.EXPECT().Totals(gomock.Any()).Return(repositories.Totals{Count: 120, Amount: 3400000}, nil)
	f.payments.EXPECT().
		ApprovedSince(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, since time.Time) (repositories.Totals, error) {
			totals, ok := income[since]
			if !ok {
				return repositories.Totals{}, errors.New("unexpected window " + since.String())
			}
			return totals, nil
		}).
		Times(5)

	stats, err := f.service.Stats(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 120, stats.Users)
	require.Equal(t, int64(3400000), stats.TotalBalance)
	require.Equal(t, int64(2000000), stats.TotalIncome.Amount)

	require.Len(t, stats.Income, 4)
	require.Equal(t, "Today", stats.Income[0].Label)
	require.Equal(t, 2, stats.Income[0].Count)
	require.Equal(t, "This week", stats.Income[1].Label)
	require.Equal(t, int64(250000), stats.Income[1].Amount)
	require.Equal(t, int64(450000), stats.Income[2].Amount)
	require.Equal(t, 30, stats.Income[3].Count)
}

func TestService_StatsFailure(t *testing.T) {
	f := newFixture(t)

	f.users.EXPECT().Totals(gomock.Any()).Return(repositories.Totals{}, errors.New("connection reset")).AnyTimes()
	f.payments.EXPECT().ApprovedSince(gomock.Any(), gomock.Any()).Return(repositories.Totals{}, nil).AnyTimes()

	_, err := f.service.Stats(context.Background(), time.Now())
	require.Error(t, err)
}

func TestIncomePeriods_WeekStartsOnMonday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"across months", time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods := incomePeriods(tt.now)
			require.Equal(t, tt.want, periods[1].Since)
		})
	}
}
