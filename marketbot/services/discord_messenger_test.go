package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channelID snowflake.ID
	create    discord.MessageCreate
}

type fakeRest struct {
	mu       sync.Mutex
	dmOpened int
	sent     []sentMessage
	updated  []discord.MessageUpdate
	failSend error
}

func (f *fakeRest) CreateDMChannel(userID snowflake.ID, _ ...rest.RequestOpt) (*discord.DMChannel, error) {
	f.mu.Lock()
	f.dmOpened++
	f.mu.Unlock()

	var channel discord.DMChannel
	// DM channel ids mirror the user id to keep assertions readable.
	raw := `{"id":"` + userID.String() + `","type":1}`
	if err := json.Unmarshal([]byte(raw), &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (f *fakeRest) CreateMessage(channelID snowflake.ID, create discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return nil, f.failSend
	}
	f.sent = append(f.sent, sentMessage{channelID: channelID, create: create})
	return &discord.Message{ID: snowflake.ID(900 + len(f.sent)), ChannelID: channelID}, nil
}

func (f *fakeRest) UpdateMessage(_ snowflake.ID, _ snowflake.ID, update discord.MessageUpdate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, update)
	return &discord.Message{}, nil
}

func TestDiscordMessenger_NotifyCachesDMChannel(t *testing.T) {
	fake := &fakeRest{}
	m := NewDiscordMessenger(fake, 10)

	msg := auction.Message{
		Title: "🔔 New bid",
		Text:  "150",
		Controls: []auction.Control{
			{Kind: auction.ControlSell, Label: "Sell", ListingID: 3, BidID: 8},
			{Kind: auction.ControlEnd, Label: "End", ListingID: 3},
		},
	}
	require.NoError(t, m.Notify(context.Background(), "77", msg))
	require.NoError(t, m.Notify(context.Background(), "77", msg))

	require.Equal(t, 1, fake.dmOpened)
	require.Len(t, fake.sent, 2)
	require.Equal(t, snowflake.ID(77), fake.sent[0].channelID)
	require.Equal(t, "🔔 New bid", fake.sent[0].create.Embeds[0].Title)

	row, ok := fake.sent[0].create.Components[0].(discord.ActionRowComponent)
	require.True(t, ok)
	ids := make([]string, 0, len(row))
	for _, c := range row {
		ids = append(ids, c.(discord.ButtonComponent).CustomID)
	}
	require.Equal(t, []string{"/auction/sell/3/8", "/auction/end/3"}, ids)
}

func TestDiscordMessenger_NotifyInvalidUser(t *testing.T) {
	m := NewDiscordMessenger(&fakeRest{}, 10)
	err := m.Notify(context.Background(), "not-a-user", auction.Message{Title: "x"})
	require.Error(t, err)
}

func TestDiscordMessenger_PublicView(t *testing.T) {
	fake := &fakeRest{}
	m := NewDiscordMessenger(fake, 10)

	ref, err := m.SendPublicView(context.Background(), auction.View{
		Title:    "🔨 Auction",
		Text:     "Roses",
		ImageURL: "https://cdn.example/rose.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, "10:901", ref)
	require.Equal(t, "https://cdn.example/rose.jpg", fake.sent[0].create.Embeds[0].Image.URL)

	require.NoError(t, m.UpdatePublicView(context.Background(), ref, auction.View{Title: "✅ Sold"}))
	require.Len(t, fake.updated, 1)
	require.NotNil(t, fake.updated[0].Components)
	require.Empty(t, *fake.updated[0].Components)
}

func TestDiscordMessenger_SendFailure(t *testing.T) {
	fake := &fakeRest{failSend: errors.New("missing access")}
	m := NewDiscordMessenger(fake, 10)

	_, err := m.SendPublicView(context.Background(), auction.View{Title: "x"})
	require.ErrorContains(t, err, "missing access")
}

func TestParseViewRef(t *testing.T) {
	tests := []struct {
		ref     string
		channel snowflake.ID
		message snowflake.ID
		wantErr bool
	}{
		{ref: "10:20", channel: 10, message: 20},
		{ref: "1020", wantErr: true},
		{ref: "x:20", wantErr: true},
		{ref: "10:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			channel, message, err := ParseViewRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.channel, channel)
			require.Equal(t, tt.message, message)
		})
	}
}

func TestParseListingID(t *testing.T) {
	id, err := ParseListingID(" #42 ")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	_, err = ParseListingID("0")
	require.Error(t, err)
	_, err = ParseListingID("roses")
	require.Error(t, err)
}
