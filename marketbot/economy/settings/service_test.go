package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/flowermarket/market-bot/marketbot/database/repositories/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testDefaults = Defaults{
	RegularPostPrice: 30000,
	AuctionPostPrice: 40000,
	PaymentCard:      "8600 0000 0000 0000",
}

func newService(t *testing.T) (*Service, *mock.MockSettingsRepository) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockSettingsRepository(ctrl)
	return NewService(repo, testDefaults), repo
}

func TestService_Defaults(t *testing.T) {
	s, _ := newService(t)

	require.Equal(t, int64(30000), s.PostFee(false))
	require.Equal(t, int64(40000), s.PostFee(true))
	require.Equal(t, "8600 0000 0000 0000", s.PaymentCard())
}

func TestService_LoadOverridesDefaults(t *testing.T) {
	s, repo := newService(t)
	repo.EXPECT().All(gomock.Any()).Return(map[string]string{
		KeyAuctionPostPrice: "55000",
		KeyRegularPostPrice: "not a number",
		KeyPaymentCard:      "9860 1111 2222 3333",
	}, nil)

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, int64(55000), s.PostFee(true))
	require.Equal(t, int64(30000), s.PostFee(false))
	require.Equal(t, "9860 1111 2222 3333", s.PaymentCard())
}

func TestService_LoadFailureKeepsDefaults(t *testing.T) {
	s, repo := newService(t)
	repo.EXPECT().All(gomock.Any()).Return(nil, errors.New("connection refused"))

	require.Error(t, s.Load(context.Background()))
	require.Equal(t, int64(40000), s.PostFee(true))
}

func TestService_SetPostFee(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()

	repo.EXPECT().Set(gomock.Any(), KeyRegularPostPrice, "35000", "admin").Return(nil)
	require.NoError(t, s.SetPostFee(ctx, false, 35000, "admin"))
	require.Equal(t, int64(35000), s.PostFee(false))
	require.Equal(t, int64(40000), s.PostFee(true))

	require.ErrorIs(t, s.SetPostFee(ctx, true, 0, "admin"), ErrInvalidValue)
	require.ErrorIs(t, s.SetPostFee(ctx, true, -1, "admin"), ErrInvalidValue)
}

func TestService_SetPostFeeStoreFailure(t *testing.T) {
	s, repo := newService(t)

	repo.EXPECT().Set(gomock.Any(), KeyAuctionPostPrice, "50000", "admin").Return(errors.New("read only"))
	require.Error(t, s.SetPostFee(context.Background(), true, 50000, "admin"))
	require.Equal(t, int64(40000), s.PostFee(true))
}

func TestService_SetPaymentCard(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()

	repo.EXPECT().Set(gomock.Any(), KeyPaymentCard, "9860 4444 5555 6666", "admin").Return(nil)
	require.NoError(t, s.SetPaymentCard(ctx, "  9860 4444 5555 6666 ", "admin"))
	require.Equal(t, "9860 4444 5555 6666", s.PaymentCard())

	require.ErrorIs(t, s.SetPaymentCard(ctx, "   ", "admin"), ErrInvalidValue)
}
