package auction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flowermarket/market-bot/marketbot/database/memstore"
	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/flowermarket/market-bot/marketbot/economy/auction/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNotifier_Deliver(t *testing.T) {
	msg := auction.Message{Title: "📈 New highest bid"}

	tests := []struct {
		name       string
		deliveries []auction.Delivery
		failing    map[string]bool
		want       int
	}{
		{
			name: "all delivered",
			deliveries: []auction.Delivery{
				{UserID: "u1", Message: msg},
				{UserID: "u2", Message: msg},
			},
			want: 2,
		},
		{
			name: "failing recipient is skipped",
			deliveries: []auction.Delivery{
				{UserID: "u1", Message: msg},
				{UserID: "blocked", Message: msg},
				{UserID: "u3", Message: msg},
			},
			failing: map[string]bool{"blocked": true},
			want:    2,
		},
		{
			name: "duplicates and empty ids are dropped",
			deliveries: []auction.Delivery{
				{UserID: "u1", Message: msg},
				{UserID: "u1", Message: msg},
				{UserID: "", Message: msg},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := mock.NewMockMessenger(gomock.NewController(t))
			messenger.EXPECT().
				Notify(gomock.Any(), gomock.Any(), msg).
				DoAndReturn(func(_ context.Context, userID string, _ auction.Message) error {
					if tt.failing[userID] {
						return errors.New("cannot send messages to this user")
					}
					return nil
				}).
				Times(len(tt.deliveries) - dropped(tt.deliveries))

			n := auction.NewNotifier(messenger, 2)
			require.Equal(t, tt.want, n.Deliver(context.Background(), tt.deliveries))
		})
	}
}

func dropped(deliveries []auction.Delivery) int {
	seen := map[string]bool{}
	n := 0
	for _, d := range deliveries {
		if d.UserID == "" || seen[d.UserID] {
			n++
			continue
		}
		seen[d.UserID] = true
	}
	return n
}

func TestNotifier_UpdateViewSwallowsErrors(t *testing.T) {
	messenger := mock.NewMockMessenger(gomock.NewController(t))
	messenger.EXPECT().
		UpdatePublicView(gomock.Any(), "view-1", gomock.Any()).
		Return(errors.New("message deleted"))

	n := auction.NewNotifier(messenger, 1)
	n.UpdateView(context.Background(), "view-1", auction.View{Title: "🏁 Ended"})

	// no view reference, no call
	n.UpdateView(context.Background(), "", auction.View{})
}

func TestEngine_PublishFailsWhenViewCannotBePosted(t *testing.T) {
	messenger := mock.NewMockMessenger(gomock.NewController(t))
	store := memstore.New()

	listing := &models.Listing{OwnerID: "owner", Name: "Peonies", StartingPrice: 50000}
	require.NoError(t, store.Create(context.Background(), listing))

	messenger.EXPECT().
		SendPublicView(gomock.Any(), gomock.Any()).
		Return("", errors.New("missing permissions"))

	engine := auction.NewEngine(store, messenger)
	_, err := engine.Publish(context.Background(), listing.ID, nil)
	require.Error(t, err)

	got, err := store.GetByID(context.Background(), listing.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingStatusPending, got.Status)
}
