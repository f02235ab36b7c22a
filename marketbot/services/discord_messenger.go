package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/flowermarket/market-bot/marketbot/economy/auction"
	lru "github.com/hashicorp/golang-lru"
)

const dmCacheSize = 4096

// DiscordRest is the part of the disgo REST client the messenger uses.
type DiscordRest interface {
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(channelID snowflake.ID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// DiscordMessenger delivers auction messages as direct messages and keeps the
// listing post in the market channel up to date.
type DiscordMessenger struct {
	rest       DiscordRest
	channelID  snowflake.ID
	dmChannels *lru.Cache
}

var _ auction.Messenger = (*DiscordMessenger)(nil)

func NewDiscordMessenger(client DiscordRest, marketChannelID snowflake.ID) *DiscordMessenger {
	cache, _ := lru.New(dmCacheSize)
	return &DiscordMessenger{
		rest:       client,
		channelID:  marketChannelID,
		dmChannels: cache,
	}
}

func (m *DiscordMessenger) Notify(ctx context.Context, userID string, msg auction.Message) error {
	channelID, err := m.dmChannel(ctx, userID)
	if err != nil {
		return err
	}

	_, err = m.rest.CreateMessage(channelID, discord.MessageCreate{
		Embeds:     []discord.Embed{messageEmbed(msg)},
		Components: RenderControls(msg.Controls),
	}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", userID, err)
	}
	return nil
}

func (m *DiscordMessenger) SendPublicView(ctx context.Context, view auction.View) (string, error) {
	message, err := m.rest.CreateMessage(m.channelID, discord.MessageCreate{
		Embeds:     []discord.Embed{viewEmbed(view)},
		Components: RenderControls(view.Controls),
	}, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post listing: %w", err)
	}
	return FormatViewRef(m.channelID, message.ID), nil
}

func (m *DiscordMessenger) UpdatePublicView(ctx context.Context, viewRef string, view auction.View) error {
	channelID, messageID, err := ParseViewRef(viewRef)
	if err != nil {
		return err
	}

	embeds := []discord.Embed{viewEmbed(view)}
	components := RenderControls(view.Controls)
	if components == nil {
		components = []discord.ContainerComponent{}
	}

	_, err = m.rest.UpdateMessage(channelID, messageID, discord.MessageUpdate{
		Embeds:     &embeds,
		Components: &components,
	}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to update listing post %s: %w", viewRef, err)
	}
	return nil
}

func (m *DiscordMessenger) dmChannel(ctx context.Context, userID string) (snowflake.ID, error) {
	if cached, ok := m.dmChannels.Get(userID); ok {
		return cached.(snowflake.ID), nil
	}

	id, err := snowflake.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	channel, err := m.rest.CreateDMChannel(id, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to open DM channel with %s: %w", userID, err)
	}

	m.dmChannels.Add(userID, channel.ID())
	slog.Debug("Opened DM channel",
		slog.String("type", "sys"),
		slog.String("user_id", userID),
		slog.String("channel_id", channel.ID().String()))
	return channel.ID(), nil
}

func messageEmbed(msg auction.Message) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(msg.Title).
		SetDescription(msg.Text).
		SetColor(config.BackgroundColor).
		Build()
}

func viewEmbed(view auction.View) discord.Embed {
	color := view.Color
	if color == 0 {
		color = config.InfoColor
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(view.Title).
		SetDescription(view.Text).
		SetColor(color)
	if view.ImageURL != "" {
		embed.SetImage(view.ImageURL)
	}
	return embed.Build()
}

// ControlCustomID returns the component route that handles c.
func ControlCustomID(c auction.Control) string {
	switch c.Kind {
	case auction.ControlSell:
		return fmt.Sprintf("/auction/%s/%d/%d", c.Kind, c.ListingID, c.BidID)
	default:
		return fmt.Sprintf("/auction/%s/%d", c.Kind, c.ListingID)
	}
}

// RenderControls turns controls into a single action row of buttons.
func RenderControls(controls []auction.Control) []discord.ContainerComponent {
	if len(controls) == 0 {
		return nil
	}

	buttons := make([]discord.InteractiveComponent, 0, len(controls))
	for _, c := range controls {
		id := ControlCustomID(c)
		switch c.Kind {
		case auction.ControlJoin:
			buttons = append(buttons, discord.NewSuccessButton(c.Label, id))
		case auction.ControlSell:
			buttons = append(buttons, discord.NewPrimaryButton(c.Label, id))
		case auction.ControlEnd:
			buttons = append(buttons, discord.NewDangerButton(c.Label, id))
		default:
			buttons = append(buttons, discord.NewSecondaryButton(c.Label, id))
		}
	}
	return []discord.ContainerComponent{discord.NewActionRow(buttons...)}
}

func FormatViewRef(channelID, messageID snowflake.ID) string {
	return channelID.String() + ":" + messageID.String()
}

func ParseViewRef(viewRef string) (channelID snowflake.ID, messageID snowflake.ID, err error) {
	channel, message, ok := strings.Cut(viewRef, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed view ref %q", viewRef)
	}
	if channelID, err = snowflake.Parse(channel); err != nil {
		return 0, 0, fmt.Errorf("malformed view ref %q: %w", viewRef, err)
	}
	if messageID, err = snowflake.Parse(message); err != nil {
		return 0, 0, fmt.Errorf("malformed view ref %q: %w", viewRef, err)
	}
	return channelID, messageID, nil
}

// ParseListingID parses the listing id of a component route or command option.
func ParseListingID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid listing id %q", raw)
	}
	return id, nil
}
