package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
)

// SubmitBid records a bid that strictly exceeds the current price. The bid
// insert and the listing's price, leader and bid count change in one step
// under the listing lock; notifications go out after commit.
func (e *Engine) SubmitBid(ctx context.Context, listingID int64, bidder Identity, amount int64) (*models.AuctionBid, error) {
	if amount <= 0 {
		return nil, e.fail("bid on", listingID, ErrInvalidAmount)
	}

	now := e.now()
	var (
		bid     *models.AuctionBid
		listing *models.Listing
	)

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if err := checkBiddable(l, bidder.ID, now); err != nil {
			return err
		}

		participant, err := tx.GetParticipant(ctx, bidder.ID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return ErrNotParticipant
			}
			return err
		}
		if !participant.IsActive {
			return ErrNotParticipant
		}

		if amount <= l.CurrentBid {
			return ErrStaleBid
		}

		bid = &models.AuctionBid{
			BidderID:    bidder.ID,
			Username:    bidder.Username,
			DisplayName: bidder.DisplayName,
			Amount:      amount,
			CreatedAt:   now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		l.CurrentBid = amount
		l.HighestBidderID = bidder.ID
		l.BidCount++
		if err := tx.Save(ctx, "current_bid", "highest_bidder_id", "bid_count"); err != nil {
			return err
		}

		listing = snapshot(l)
		return nil
	})
	if err != nil {
		return nil, e.fail("bid on", listingID, err)
	}

	slog.Info("Bid accepted",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID),
		slog.Int64("bid_id", bid.ID),
		slog.String("bidder_id", bidder.ID),
		slog.Int64("amount", amount))

	e.announceBid(ctx, listing, bid)
	return bid, nil
}

func (e *Engine) announceBid(ctx context.Context, listing *models.Listing, bid *models.AuctionBid) {
	participants, err := e.repo.GetParticipants(ctx, listing.ID, true)
	if err != nil {
		slog.Warn("Failed to load participants for bid broadcast",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listing.ID),
			slog.Any("error", err))
	}

	deliveries := []Delivery{
		{UserID: bid.BidderID, Message: e.views.BidAccepted(listing, bid)},
		{UserID: listing.OwnerID, Message: e.views.OwnerNewBid(listing, bid)},
	}
	deliveries = append(deliveries, broadcast(participants, e.views.NewLeader(listing, bid), bid.BidderID, listing.OwnerID)...)

	e.notifier.Deliver(ctx, deliveries)
	e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Public(listing, bidders(listing, participants), e.now()))
}

// Leader returns the highest bid of a listing, or nil when it has none.
func (e *Engine) Leader(ctx context.Context, listingID int64) (*models.AuctionBid, error) {
	if _, err := e.repo.GetByID(ctx, listingID); err != nil {
		return nil, e.fail("get leader of", listingID, err)
	}

	bid, err := e.repo.GetHighestBid(ctx, listingID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, e.fail("get leader of", listingID, err)
	}
	return bid, nil
}

// History returns every bid of a listing, highest first.
func (e *Engine) History(ctx context.Context, listingID int64) ([]*models.AuctionBid, error) {
	if _, err := e.repo.GetByID(ctx, listingID); err != nil {
		return nil, e.fail("get history of", listingID, err)
	}

	bids, err := e.repo.GetBids(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids of listing %d: %w", listingID, err)
	}
	return bids, nil
}
