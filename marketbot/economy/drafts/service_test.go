package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	repomock "github.com/flowermarket/market-bot/marketbot/database/repositories/mock"
	"github.com/flowermarket/market-bot/marketbot/economy/accounts"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts/mock"
	"github.com/flowermarket/market-bot/marketbot/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	drafts    *repomock.MockDraftRepository
	listings  *mock.MockListingStore
	accounts  *mock.MockAccounts
	publisher *mock.MockPublisher
	notifier  *mock.MockNotifier
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		drafts:    repomock.NewMockDraftRepository(ctrl),
		listings:  mock.NewMockListingStore(ctrl),
		accounts:  mock.NewMockAccounts(ctrl),
		publisher: mock.NewMockPublisher(ctrl),
		notifier:  mock.NewMockNotifier(ctrl),
	}
	f.service = NewService(f.drafts, f.listings, f.accounts, f.publisher, f.notifier, DefaultConfig())
	f.service.now = func() time.Time { return testNow }
	return f
}

func openDraft(isAuction bool) *models.ListingDraft {
	return &models.ListingDraft{
		ID:              uuid.New(),
		OwnerID:         "owner",
		OwnerHandle:     "florist",
		IsAuction:       isAuction,
		Name:            "White lilies",
		Price:           100000,
		DurationMinutes: 60,
		MediaURLs:       []string{"https://cdn.example.com/lilies.jpg"},
		Status:          models.DraftStatusCollecting,
		ExpiresAt:       testNow.Add(time.Hour),
	}
}

func TestService_Start(t *testing.T) {
	f := newFixture(t)
	owner := auction.Identity{ID: "owner", Username: "florist"}

	f.drafts.EXPECT().CancelOpenByOwner(gomock.Any(), "owner").Return(1, nil)
	f.drafts.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d *models.ListingDraft) error {
			require.Equal(t, models.DraftStatusCollecting, d.Status)
			require.Equal(t, 60, d.DurationMinutes)
			require.Equal(t, int64(40000), d.RequiredFee)
			require.Equal(t, testNow.Add(24*time.Hour), d.ExpiresAt)
			require.NotEqual(t, uuid.Nil, d.ID)
			return nil
		})

	draft, err := f.service.Start(context.Background(), owner, StartInput{
		IsAuction: true,
		Name:      "White lilies",
		Price:     100000,
	})
	require.NoError(t, err)
	require.Equal(t, "florist", draft.OwnerHandle)
}

func TestService_StartValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   StartInput
		wantErr error
	}{
		{"missing name", StartInput{Price: 100}, ErrInvalidDraft},
		{"zero price", StartInput{Name: "Roses"}, ErrInvalidDraft},
		{"odd duration", StartInput{Name: "Roses", Price: 100, IsAuction: true, DurationMinutes: 45}, ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.Start(context.Background(), auction.Identity{ID: "owner"}, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_AddMedia(t *testing.T) {
	t.Run("appends", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).Return(draft, nil)
		f.drafts.EXPECT().Update(gomock.Any(), draft).Return(nil)

		got, err := f.service.AddMedia(context.Background(), "owner", []string{"https://cdn.example.com/2.jpg"})
		require.NoError(t, err)
		require.Len(t, got.MediaURLs, 2)
	})

	t.Run("limit", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		draft.MediaURLs = make([]string, 10)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).Return(draft, nil)

		_, err := f.service.AddMedia(context.Background(), "owner", []string{"x"})
		require.ErrorIs(t, err, ErrTooManyMedia)
	})

	t.Run("no draft", func(t *testing.T) {
		f := newFixture(t)
		f.drafts.EXPECT().
			GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).
			Return(nil, &repositories.NotFoundError{Entity: "listing_draft", ID: "owner"})

		_, err := f.service.AddMedia(context.Background(), "owner", []string{"x"})
		require.ErrorIs(t, err, ErrNoOpenDraft)
	})
}

func TestService_Current(t *testing.T) {
	notFound := &repositories.NotFoundError{Entity: "listing_draft", ID: "owner"}

	t.Run("collecting first", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(false)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).Return(draft, nil)

		got, err := f.service.Current(context.Background(), "owner")
		require.NoError(t, err)
		require.Equal(t, draft.ID, got.ID)
	})

	t.Run("falls back to awaiting payment", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		draft.Status = models.DraftStatusAwaitingPayment
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).Return(nil, notFound)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusAwaitingPayment).Return(draft, nil)

		got, err := f.service.Current(context.Background(), "owner")
		require.NoError(t, err)
		require.Equal(t, models.DraftStatusAwaitingPayment, got.Status)
	})

	t.Run("expired awaiting draft", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		draft.Status = models.DraftStatusAwaitingPayment
		draft.ExpiresAt = testNow.Add(-time.Minute)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusCollecting).Return(nil, notFound)
		f.drafts.EXPECT().GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusAwaitingPayment).Return(draft, nil)

		_, err := f.service.Current(context.Background(), "owner")
		require.ErrorIs(t, err, ErrNoOpenDraft)
	})
}

func TestService_SubmitPublishes(t *testing.T) {
	f := newFixture(t)
	draft := openDraft(true)

	f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusCollecting, models.DraftStatusPublished).Return(true, nil)
	f.accounts.EXPECT().Account(gomock.Any(), "owner").Return(&models.User{ID: 5, DiscordID: "owner", Balance: 100000}, nil)
	f.accounts.EXPECT().Debit(gomock.Any(), "owner", int64(40000)).Return(nil)
	f.listings.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *models.Listing) error {
			require.Equal(t, int64(5), l.OwnerUserID)
			require.Equal(t, int64(100000), l.StartingPrice)
			require.True(t, l.IsAuction)
			l.ID = 77
			return nil
		})
	f.publisher.EXPECT().
		Publish(gomock.Any(), int64(77), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, deadline *time.Time) (string, error) {
			require.NotNil(t, deadline)
			require.Equal(t, testNow.Add(time.Hour), *deadline)
			return "view-77", nil
		})
	f.drafts.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d *models.ListingDraft) error {
			require.Equal(t, models.DraftStatusPublished, d.Status)
			require.Equal(t, int64(77), *d.ListingID)
			return nil
		})

	result, err := f.service.Submit(context.Background(), draft.ID, "owner")
	require.NoError(t, err)
	require.True(t, result.Published())
	require.Equal(t, "view-77", result.ViewRef)
	require.Equal(t, int64(40000), result.Fee)
}

func TestService_SubmitAwaitsPayment(t *testing.T) {
	f := newFixture(t)
	draft := openDraft(false)
	// fee recorded when the draft was opened, before a price change
	draft.RequiredFee = 25000

	f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusCollecting, models.DraftStatusPublished).Return(true, nil)
	f.accounts.EXPECT().Account(gomock.Any(), "owner").Return(&models.User{ID: 5, Balance: 10000}, nil)
	f.accounts.EXPECT().Debit(gomock.Any(), "owner", int64(30000)).Return(accounts.ErrInsufficientFunds)
	f.drafts.EXPECT().AwaitPayment(gomock.Any(), draft.ID, int64(30000)).Return(true, nil)

	result, err := f.service.Submit(context.Background(), draft.ID, "owner")
	require.NoError(t, err)
	require.False(t, result.Published())
	require.Equal(t, int64(20000), result.Shortfall)
	require.Equal(t, models.DraftStatusAwaitingPayment, result.Draft.Status)
	require.Equal(t, int64(30000), result.Draft.RequiredFee)
}

func TestService_SubmitRefundsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	draft := openDraft(true)

	f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusCollecting, models.DraftStatusPublished).Return(true, nil)
	f.accounts.EXPECT().Account(gomock.Any(), "owner").Return(&models.User{ID: 5, Balance: 100000}, nil)
	f.accounts.EXPECT().Debit(gomock.Any(), "owner", int64(40000)).Return(nil)
	f.listings.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("missing access"))
	f.accounts.EXPECT().Credit(gomock.Any(), "owner", int64(40000)).Return(nil)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusPublished, models.DraftStatusCollecting).Return(true, nil)

	_, err := f.service.Submit(context.Background(), draft.ID, "owner")
	require.Error(t, err)
}

func TestService_SubmitGuards(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)

		_, err := f.service.Submit(context.Background(), draft.ID, "intruder")
		require.ErrorIs(t, err, ErrNotDraftOwner)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		draft.ExpiresAt = testNow
		f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)

		_, err := f.service.Submit(context.Background(), draft.ID, "owner")
		require.ErrorIs(t, err, ErrDraftExpired)
	})

	t.Run("lost the claim", func(t *testing.T) {
		f := newFixture(t)
		draft := openDraft(true)
		f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)
		f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusCollecting, models.DraftStatusPublished).Return(false, nil)

		_, err := f.service.Submit(context.Background(), draft.ID, "owner")
		require.ErrorIs(t, err, ErrDraftClosed)
	})
}

func TestService_HandlePaymentApprovedResumesDraft(t *testing.T) {
	f := newFixture(t)
	draft := openDraft(false)
	draft.Status = models.DraftStatusAwaitingPayment

	f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil).Times(2)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusAwaitingPayment, models.DraftStatusPublished).Return(true, nil)
	f.accounts.EXPECT().Account(gomock.Any(), "owner").Return(&models.User{ID: 5, Balance: 60000}, nil)
	f.accounts.EXPECT().Debit(gomock.Any(), "owner", int64(30000)).Return(nil)
	f.listings.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Nil()).
		Return("view-1", nil)
	f.drafts.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	f.notifier.EXPECT().
		Notify(gomock.Any(), "owner", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg auction.Message) error {
			require.Equal(t, "✅ Listing published", msg.Title)
			return nil
		})

	bus := events.NewBus()
	f.service.Subscribe(bus)
	bus.PaymentApproved.Publish(context.Background(), events.PaymentApproved{
		PaymentID: 1,
		DiscordID: "owner",
		Amount:    50000,
		DraftID:   &draft.ID,
	})
}

func TestService_HandlePaymentApprovedWithoutDraft(t *testing.T) {
	f := newFixture(t)
	f.drafts.EXPECT().
		GetOpenByOwner(gomock.Any(), "owner", models.DraftStatusAwaitingPayment).
		Return(nil, &repositories.NotFoundError{Entity: "listing_draft", ID: "owner"})

	f.service.HandlePaymentApproved(context.Background(), events.PaymentApproved{DiscordID: "owner", Amount: 1000})
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t)
	draft := openDraft(true)
	f.drafts.EXPECT().GetByID(gomock.Any(), draft.ID).Return(draft, nil)
	f.drafts.EXPECT().Transition(gomock.Any(), draft.ID, models.DraftStatusCollecting, models.DraftStatusCancelled).Return(true, nil)

	require.NoError(t, f.service.Cancel(context.Background(), draft.ID, "owner"))
}

func TestService_ExpireStale(t *testing.T) {
	f := newFixture(t)
	f.drafts.EXPECT().ExpireBefore(gomock.Any(), testNow).Return(3, nil)

	n, err := f.service.ExpireStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

type fixedFees map[bool]int64

func (f fixedFees) PostFee(isAuction bool) int64 {
	return f[isAuction]
}

func TestService_FeeFollowsFeeSource(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, int64(40000), f.service.Fee(true))
	require.Equal(t, int64(30000), f.service.Fee(false))

	cfg := DefaultConfig()
	cfg.Fees = fixedFees{true: 55000, false: 35000}
	f.service = NewService(f.drafts, f.listings, f.accounts, f.publisher, f.notifier, cfg)
	require.Equal(t, int64(55000), f.service.Fee(true))
	require.Equal(t, int64(35000), f.service.Fee(false))
}
