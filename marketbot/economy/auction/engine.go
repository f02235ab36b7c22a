package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
)

// Engine owns the auction lifecycle of listings: publishing, the bid ledger,
// the participant registry and resolution. It is safe for concurrent use;
// every mutation of a listing runs under that listing's lock.
type Engine struct {
	repo     repositories.ListingRepository
	notifier *Notifier
	views    *Views
	clock    Clock
}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.views.Currency = currency
	}
}

func WithNotifyConcurrency(limit int) Option {
	return func(e *Engine) {
		e.notifier.limit = limit
	}
}

func NewEngine(repo repositories.ListingRepository, messenger Messenger, opts ...Option) *Engine {
	if repo == nil {
		panic("listing repository cannot be nil")
	}
	if messenger == nil {
		panic("messenger cannot be nil")
	}

	e := &Engine{
		repo:     repo,
		notifier: NewNotifier(messenger, economicUtils.NotifyConcurrency),
		views:    &Views{Currency: economicUtils.DefaultCurrency},
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Listing returns the current state of a listing.
func (e *Engine) Listing(ctx context.Context, listingID int64) (*models.Listing, error) {
	listing, err := e.repo.GetByID(ctx, listingID)
	if err != nil {
		return nil, e.fail("get", listingID, err)
	}
	return listing, nil
}

// PublishedAuctions lists auctions currently open to participants.
func (e *Engine) PublishedAuctions(ctx context.Context) ([]*models.Listing, error) {
	listings, err := e.repo.GetPublishedAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list published auctions: %w", err)
	}
	return listings, nil
}

func (e *Engine) Views() *Views {
	return e.views
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// fail maps repository errors onto the engine's error taxonomy.
func (e *Engine) fail(op string, listingID int64, err error) error {
	if repositories.IsNotFound(err) {
		err = fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%s listing %d: %w", op, listingID, err)
}

// bidders counts active participants other than the owner.
func bidders(listing *models.Listing, participants []*models.AuctionParticipant) int {
	n := 0
	for _, p := range participants {
		if p.UserID != listing.OwnerID {
			n++
		}
	}
	return n
}

func snapshot(l *models.Listing) *models.Listing {
	c := *l
	return &c
}
