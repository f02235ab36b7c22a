package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/uptrace/bun"
)

// ListingRepository persists listings together with their bids and participants.
// All writes to listing status and bid state go through WithListingLock.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error)
	GetPublishedAuctions(ctx context.Context) ([]*models.Listing, error)
	GetExpired(ctx context.Context, now time.Time) ([]*models.Listing, error)

	GetBid(ctx context.Context, bidID int64) (*models.AuctionBid, error)
	GetBids(ctx context.Context, listingID int64) ([]*models.AuctionBid, error)
	GetHighestBid(ctx context.Context, listingID int64) (*models.AuctionBid, error)

	GetParticipants(ctx context.Context, listingID int64, activeOnly bool) ([]*models.AuctionParticipant, error)
	GetLiveParticipations(ctx context.Context, userID string, now time.Time) ([]*models.AuctionParticipant, error)

	// WithListingLock runs fn while holding the exclusive lock of one listing.
	// Changes made through the ListingTx are committed only if fn returns nil.
	WithListingLock(ctx context.Context, listingID int64, fn func(ctx context.Context, tx ListingTx) error) error
}

// ListingTx is the view of one locked listing.
type ListingTx interface {
	Listing() *models.Listing
	// Save persists the named columns of Listing(). updated_at is always written.
	Save(ctx context.Context, columns ...string) error
	InsertBid(ctx context.Context, bid *models.AuctionBid) error
	GetBid(ctx context.Context, bidID int64) (*models.AuctionBid, error)
	GetParticipant(ctx context.Context, userID string) (*models.AuctionParticipant, error)
	SaveParticipant(ctx context.Context, participant *models.AuctionParticipant) error
	// HasLiveParticipation reports whether userID is an active bidder of another
	// published auction that has not reached its deadline.
	HasLiveParticipation(ctx context.Context, userID string, now time.Time) (bool, error)
}

type listingRepository struct {
	*BaseRepository
	txManager *utils.TransactionManager
}

func NewListingRepository(db *bun.DB) ListingRepository {
	return &listingRepository{
		BaseRepository: NewBaseRepository(db),
		txManager:      utils.NewTransactionManager(db),
	}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.Status == "" {
		listing.Status = models.ListingStatusPending
	}

	_, err := r.db.NewInsert().Model(listing).Returning("*").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "listing", id, err)
	}
	return listing, nil
}

func (r *listingRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.NewSelect().
		Model(&listings).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_by_owner", "listing", err)
	}
	return listings, nil
}

func (r *listingRepository) GetPublishedAuctions(ctx context.Context) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.NewSelect().
		Model(&listings).
		Where("status = ?", models.ListingStatusPublished).
		Where("is_auction = TRUE").
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_published", "listing", err)
	}
	return listings, nil
}

func (r *listingRepository) GetExpired(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.NewSelect().
		Model(&listings).
		Where("status = ?", models.ListingStatusPublished).
		Where("is_auction = TRUE").
		Where("deadline IS NOT NULL AND deadline <= ?", now).
		Where("expiry_prompted_at IS NULL").
		Order("deadline ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_expired", "listing", err)
	}
	return listings, nil
}

func (r *listingRepository) GetBid(ctx context.Context, bidID int64) (*models.AuctionBid, error) {
	return getBid(ctx, r.db, bidID)
}

func (r *listingRepository) GetBids(ctx context.Context, listingID int64) ([]*models.AuctionBid, error) {
	var bids []*models.AuctionBid
	err := r.db.NewSelect().
		Model(&bids).
		Where("listing_id = ?", listingID).
		Order("amount DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "auction_bid", err)
	}
	return bids, nil
}

func (r *listingRepository) GetHighestBid(ctx context.Context, listingID int64) (*models.AuctionBid, error) {
	bid := new(models.AuctionBid)
	err := r.db.NewSelect().
		Model(bid).
		Where("listing_id = ?", listingID).
		Order("amount DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get_highest", "auction_bid", listingID, err)
	}
	return bid, nil
}

func (r *listingRepository) GetParticipants(ctx context.Context, listingID int64, activeOnly bool) ([]*models.AuctionParticipant, error) {
	var participants []*models.AuctionParticipant
	q := r.db.NewSelect().
		Model(&participants).
		Where("listing_id = ?", listingID).
		Order("joined_at ASC")
	if activeOnly {
		q = q.Where("is_active = TRUE")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, r.HandleError("list", "auction_participant", err)
	}
	return participants, nil
}

func (r *listingRepository) GetLiveParticipations(ctx context.Context, userID string, now time.Time) ([]*models.AuctionParticipant, error) {
	var participants []*models.AuctionParticipant
	err := liveParticipationQuery(r.db.NewSelect().Model(&participants), userID, now).
		Order("ap.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_live", "auction_participant", err)
	}
	return participants, nil
}

func (r *listingRepository) WithListingLock(ctx context.Context, listingID int64, fn func(ctx context.Context, tx ListingTx) error) error {
	return r.txManager.WithTransaction(ctx, utils.StandardTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		listing := new(models.Listing)
		err := tx.NewSelect().
			Model(listing).
			Where("id = ?", listingID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return HandleErrorWithID("lock", "listing", listingID, err)
		}

		return fn(ctx, &listingTx{tx: tx, listing: listing})
	})
}

// liveParticipationQuery narrows q to active memberships of userID in auctions
// that still accept bids and that userID does not own.
func liveParticipationQuery(q *bun.SelectQuery, userID string, now time.Time) *bun.SelectQuery {
	return q.
		Join("JOIN listings AS l ON l.id = ap.listing_id").
		Where("ap.user_id = ?", userID).
		Where("ap.is_active = TRUE").
		Where("l.status = ?", models.ListingStatusPublished).
		Where("l.is_auction = TRUE").
		Where("l.owner_id <> ?", userID).
		Where("l.deadline IS NULL OR l.deadline > ?", now)
}

func getBid(ctx context.Context, db bun.IDB, bidID int64) (*models.AuctionBid, error) {
	bid := new(models.AuctionBid)
	err := db.NewSelect().
		Model(bid).
		Where("id = ?", bidID).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "auction_bid", bidID, err)
	}
	return bid, nil
}

type listingTx struct {
	tx      bun.Tx
	listing *models.Listing
}

func (t *listingTx) Listing() *models.Listing {
	return t.listing
}

func (t *listingTx) Save(ctx context.Context, columns ...string) error {
	t.listing.UpdatedAt = time.Now()
	_, err := t.tx.NewUpdate().
		Model(t.listing).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return HandleErrorWithID("update", "listing", t.listing.ID, err)
	}
	return nil
}

func (t *listingTx) InsertBid(ctx context.Context, bid *models.AuctionBid) error {
	bid.ListingID = t.listing.ID
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}

	_, err := t.tx.NewInsert().Model(bid).Returning("id").Exec(ctx)
	if err != nil {
		return HandleErrorWithID("insert", "auction_bid", t.listing.ID, err)
	}
	return nil
}

func (t *listingTx) GetBid(ctx context.Context, bidID int64) (*models.AuctionBid, error) {
	return getBid(ctx, t.tx, bidID)
}

func (t *listingTx) GetParticipant(ctx context.Context, userID string) (*models.AuctionParticipant, error) {
	participant := new(models.AuctionParticipant)
	err := t.tx.NewSelect().
		Model(participant).
		Where("listing_id = ? AND user_id = ?", t.listing.ID, userID).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "auction_participant", userID, err)
	}
	return participant, nil
}

func (t *listingTx) SaveParticipant(ctx context.Context, participant *models.AuctionParticipant) error {
	now := time.Now()
	participant.ListingID = t.listing.ID
	participant.UpdatedAt = now
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = now
	}

	_, err := t.tx.NewInsert().
		Model(participant).
		On("CONFLICT (listing_id, user_id) DO UPDATE").
		Set("is_active = EXCLUDED.is_active").
		Set("username = EXCLUDED.username").
		Set("display_name = EXCLUDED.display_name").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id, joined_at").
		Exec(ctx)
	if err != nil {
		return HandleErrorWithID("upsert", "auction_participant", participant.UserID, err)
	}
	return nil
}

func (t *listingTx) HasLiveParticipation(ctx context.Context, userID string, now time.Time) (bool, error) {
	exists, err := liveParticipationQuery(t.tx.NewSelect().Model((*models.AuctionParticipant)(nil)), userID, now).
		Where("ap.listing_id <> ?", t.listing.ID).
		Exists(ctx)
	if err != nil {
		return false, HandleErrorWithID("exists_live", "auction_participant", userID, err)
	}
	return exists, nil
}
