package marketbot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/flowermarket/market-bot/marketbot/database"
	"github.com/flowermarket/market-bot/marketbot/economy/drafts"
	"github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	Bot     BotConfig         `toml:"bot"`
	DB      database.DBConfig `toml:"db"`
	Auction AuctionConfig     `toml:"auction"`
	Market  MarketConfig      `toml:"market"`
	Spaces  SpacesConfig      `toml:"spaces"`
}

type BotConfig struct {
	DevGuilds       []snowflake.ID `toml:"dev_guilds"`
	Token           string         `toml:"token"`
	MarketChannelID snowflake.ID   `toml:"market_channel_id"`
	AdminIDs        []snowflake.ID `toml:"admin_ids"`
}

// IsAdmin reports whether id may review payments and force-close listings.
func (c BotConfig) IsAdmin(id snowflake.ID) bool {
	return slices.Contains(c.AdminIDs, id)
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type AuctionConfig struct {
	SweepInterval     Duration `toml:"sweep_interval"`
	NotifyConcurrency int      `toml:"notify_concurrency"`
	Durations         []int    `toml:"durations"`
	DefaultDuration   int      `toml:"default_duration"`
}

type MarketConfig struct {
	Currency         string   `toml:"currency"`
	RegularPostPrice int64    `toml:"regular_post_price"`
	AuctionPostPrice int64    `toml:"auction_post_price"`
	NewUserBonus     int64    `toml:"new_user_bonus"`
	DraftTTL         Duration `toml:"draft_ttl"`
	MediaDebounce    Duration `toml:"media_debounce"`
	MaxMedia         int      `toml:"max_media"`
	PaymentCard      string   `toml:"payment_card"`
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	MediaRoot string `toml:"media_root"`
}

// Enabled reports whether media should be copied to Spaces. Without it the
// Discord attachment urls are stored as they are.
func (c SpacesConfig) Enabled() bool {
	return c.Key != "" && c.Secret != "" && c.Bucket != ""
}

// Duration decodes TOML strings such as "90s" or "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate rejects unusable values and fills in the market defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Bot.Token == "" {
		errs = append(errs, errors.New("bot.token is required"))
	}
	if c.Bot.MarketChannelID == 0 {
		errs = append(errs, errors.New("bot.market_channel_id is required"))
	}

	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}

	if c.Auction.SweepInterval.Duration <= 0 {
		c.Auction.SweepInterval.Duration = utils.SweepInterval
	}
	if c.Auction.NotifyConcurrency <= 0 {
		c.Auction.NotifyConcurrency = utils.NotifyConcurrency
	}
	if len(c.Auction.Durations) == 0 {
		c.Auction.Durations = slices.Clone(utils.AuctionDurations)
	}
	for _, minutes := range c.Auction.Durations {
		if minutes <= 0 {
			errs = append(errs, fmt.Errorf("auction.durations must be positive, got %d", minutes))
		}
	}
	if c.Auction.DefaultDuration == 0 {
		c.Auction.DefaultDuration = utils.DefaultAuctionMinutes
	}
	if !slices.Contains(c.Auction.Durations, c.Auction.DefaultDuration) {
		errs = append(errs, fmt.Errorf("auction.default_duration %d is not one of auction.durations", c.Auction.DefaultDuration))
	}

	if c.Market.Currency == "" {
		c.Market.Currency = utils.DefaultCurrency
	}
	if c.Market.RegularPostPrice == 0 {
		c.Market.RegularPostPrice = utils.RegularPostPrice
	}
	if c.Market.AuctionPostPrice == 0 {
		c.Market.AuctionPostPrice = utils.AuctionPostPrice
	}
	if c.Market.NewUserBonus == 0 {
		c.Market.NewUserBonus = utils.NewUserBonus
	}
	if c.Market.RegularPostPrice < 0 || c.Market.AuctionPostPrice < 0 || c.Market.NewUserBonus < 0 {
		errs = append(errs, errors.New("market prices and bonus must not be negative"))
	}
	if c.Market.DraftTTL.Duration <= 0 {
		c.Market.DraftTTL.Duration = utils.DraftTTL
	}
	if c.Market.MediaDebounce.Duration <= 0 {
		c.Market.MediaDebounce.Duration = utils.MediaDebounce
	}
	if c.Market.MaxMedia <= 0 {
		c.Market.MaxMedia = utils.MaxDraftMedia
	}

	return errors.Join(errs...)
}

// Drafts builds the draft service configuration from the market and auction sections.
func (c *Config) Drafts() drafts.Config {
	return drafts.Config{
		RegularFee:      c.Market.RegularPostPrice,
		AuctionFee:      c.Market.AuctionPostPrice,
		TTL:             c.Market.DraftTTL.Duration,
		MaxMedia:        c.Market.MaxMedia,
		Durations:       slices.Clone(c.Auction.Durations),
		DefaultDuration: c.Auction.DefaultDuration,
		Currency:        c.Market.Currency,
	}
}
