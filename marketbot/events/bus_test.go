package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopic_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.PaymentApproved.Subscribe(func(_ context.Context, e PaymentApproved) {
		got = append(got, "first:"+e.DiscordID)
	})
	bus.PaymentApproved.Subscribe(func(_ context.Context, e PaymentApproved) {
		got = append(got, "second:"+e.DiscordID)
	})

	bus.PaymentApproved.Publish(context.Background(), PaymentApproved{DiscordID: "42", Amount: 50000})

	require.Equal(t, []string{"first:42", "second:42"}, got)
}

func TestTopic_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	topic := NewTopic[PaymentApproved]("test")

	called := false
	topic.Subscribe(func(context.Context, PaymentApproved) {
		panic("boom")
	})
	topic.Subscribe(func(context.Context, PaymentApproved) {
		called = true
	})

	require.NotPanics(t, func() {
		topic.Publish(context.Background(), PaymentApproved{})
	})
	require.True(t, called)
}
