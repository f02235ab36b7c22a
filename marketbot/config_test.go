package marketbot

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[bot]
token = "secret"
market_channel_id = 1301232741697851395
admin_ids = [42]

[db]
host = "localhost"
user = "market"
database = "market"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, slog.LevelDebug, cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, 5432, cfg.DB.Port)
	require.Equal(t, snowflake.ID(1301232741697851395), cfg.Bot.MarketChannelID)
	require.True(t, cfg.Bot.IsAdmin(42))
	require.False(t, cfg.Bot.IsAdmin(43))

	require.Equal(t, time.Minute, cfg.Auction.SweepInterval.Duration)
	require.Equal(t, 8, cfg.Auction.NotifyConcurrency)
	require.Equal(t, []int{30, 60, 120, 180, 360, 720}, cfg.Auction.Durations)
	require.Equal(t, 60, cfg.Auction.DefaultDuration)

	require.Equal(t, "so'm", cfg.Market.Currency)
	require.EqualValues(t, 30000, cfg.Market.RegularPostPrice)
	require.EqualValues(t, 40000, cfg.Market.AuctionPostPrice)
	require.EqualValues(t, 100000, cfg.Market.NewUserBonus)
	require.Equal(t, 24*time.Hour, cfg.Market.DraftTTL.Duration)
	require.Equal(t, 1500*time.Millisecond, cfg.Market.MediaDebounce.Duration)
	require.Equal(t, 10, cfg.Market.MaxMedia)
	require.False(t, cfg.Spaces.Enabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
[log]
format = "json"

[bot]
token = "secret"
market_channel_id = 7

[auction]
sweep_interval = "15s"
durations = [10, 20]
default_duration = 20

[market]
currency = "USD"
draft_ttl = "2h"
media_debounce = "500ms"

[spaces]
key = "k"
secret = "s"
bucket = "flowers"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, 15*time.Second, cfg.Auction.SweepInterval.Duration)
	require.Equal(t, []int{10, 20}, cfg.Auction.Durations)
	require.Equal(t, 2*time.Hour, cfg.Market.DraftTTL.Duration)
	require.Equal(t, 500*time.Millisecond, cfg.Market.MediaDebounce.Duration)
	require.True(t, cfg.Spaces.Enabled())

	draftCfg := cfg.Drafts()
	require.Equal(t, "USD", draftCfg.Currency)
	require.Equal(t, 20, draftCfg.DefaultDuration)
	require.Equal(t, 2*time.Hour, draftCfg.TTL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing token",
			cfg:     Config{Bot: BotConfig{MarketChannelID: 1}},
			wantErr: "bot.token is required",
		},
		{
			name:    "missing channel",
			cfg:     Config{Bot: BotConfig{Token: "t"}},
			wantErr: "bot.market_channel_id is required",
		},
		{
			name:    "unknown log format",
			cfg:     Config{Bot: BotConfig{Token: "t", MarketChannelID: 1}, Log: LogConfig{Format: "xml"}},
			wantErr: "log.format",
		},
		{
			name: "default duration not offered",
			cfg: Config{
				Bot:     BotConfig{Token: "t", MarketChannelID: 1},
				Auction: AuctionConfig{Durations: []int{30}, DefaultDuration: 45},
			},
			wantErr: "auction.default_duration",
		},
		{
			name: "negative fee",
			cfg: Config{
				Bot:    BotConfig{Token: "t", MarketChannelID: 1},
				Market: MarketConfig{RegularPostPrice: -1},
			},
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
[bot]
token = "secret"
market_channel_id = 7

[auction]
sweep_interval = "soon"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}
