package auction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
)

type expiryOutcome int

const (
	expiryNone expiryOutcome = iota
	expiryPrompted
	expiryEnded
)

// SellTo closes a published listing in favour of one of its bids. Only the
// owner may sell, also after the deadline has passed.
func (e *Engine) SellTo(ctx context.Context, listingID, bidID int64, ownerID string) error {
	now := e.now()
	var (
		listing *models.Listing
		bid     *models.AuctionBid
	)

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if err := checkResolvable(l, ownerID); err != nil {
			return err
		}

		b, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if b.ListingID != l.ID {
			return ErrNotFound
		}

		l.Status = models.ListingStatusSold
		l.SoldBidID = &b.ID
		l.ResolvedAt = &now
		if err := tx.Save(ctx, "status", "sold_bid_id", "resolved_at"); err != nil {
			return err
		}

		bid = b
		listing = snapshot(l)
		return nil
	})
	if err != nil {
		return e.fail("sell", listingID, err)
	}

	slog.Info("Listing sold",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID),
		slog.Int64("bid_id", bid.ID),
		slog.String("buyer_id", bid.BidderID),
		slog.Int64("amount", bid.Amount))

	e.announceSale(ctx, listing, bid)
	return nil
}

func (e *Engine) announceSale(ctx context.Context, listing *models.Listing, bid *models.AuctionBid) {
	participants, err := e.repo.GetParticipants(ctx, listing.ID, true)
	if err != nil {
		slog.Warn("Failed to load participants for sale broadcast",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listing.ID),
			slog.Any("error", err))
	}

	deliveries := []Delivery{
		{UserID: bid.BidderID, Message: e.views.Winner(listing, bid)},
		{UserID: listing.OwnerID, Message: e.views.BuyerInfo(listing, bid)},
	}
	deliveries = append(deliveries, broadcast(participants, e.views.Closed(listing, bid.Amount), bid.BidderID, listing.OwnerID)...)

	e.notifier.Deliver(ctx, deliveries)
	e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Sold(listing, bid.Amount))
}

// End closes a published listing without a sale on behalf of its owner.
func (e *Engine) End(ctx context.Context, listingID int64, ownerID string) error {
	if ownerID == "" {
		return e.fail("end", listingID, ErrNotOwner)
	}
	return e.end(ctx, listingID, ownerID)
}

// ForceEnd closes a published listing without a sale regardless of ownership.
func (e *Engine) ForceEnd(ctx context.Context, listingID int64, operatorID string) error {
	slog.Info("Listing force-ended",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID),
		slog.String("operator_id", operatorID))
	return e.end(ctx, listingID, "")
}

func (e *Engine) end(ctx context.Context, listingID int64, ownerID string) error {
	now := e.now()
	var listing *models.Listing

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if err := checkResolvable(l, ownerID); err != nil {
			return err
		}

		l.Status = models.ListingStatusEnded
		l.ResolvedAt = &now
		if err := tx.Save(ctx, "status", "resolved_at"); err != nil {
			return err
		}

		listing = snapshot(l)
		return nil
	})
	if err != nil {
		return e.fail("end", listingID, err)
	}

	slog.Info("Listing ended",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID))

	participants, err := e.repo.GetParticipants(ctx, listingID, true)
	if err != nil {
		slog.Warn("Failed to load participants for end broadcast",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listingID),
			slog.Any("error", err))
	}

	deliveries := broadcast(participants, e.views.EndedNotice(listing), listing.OwnerID)
	if ownerID == "" {
		deliveries = append(deliveries, Delivery{UserID: listing.OwnerID, Message: e.views.ForceEnded(listing)})
	}
	e.notifier.Deliver(ctx, deliveries)
	e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Ended(listing))
	return nil
}

// SweepExpired resolves every published auction past its deadline. Auctions
// with a leader above the starting price stay published and their owner is
// prompted once; the rest end. It returns the number of auctions ended.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	expired, err := e.repo.GetExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}

	var ended, prompted int
	for _, l := range expired {
		outcome, err := e.resolveExpired(ctx, l.ID)
		switch {
		case errors.Is(err, ErrAlreadyResolved):
			slog.Debug("Expired auction already resolved",
				slog.String("type", "auction"),
				slog.Int64("listing_id", l.ID))
			continue
		case err != nil:
			slog.Error("Failed to resolve expired auction",
				slog.String("type", "auction"),
				slog.Int64("listing_id", l.ID),
				slog.Any("error", err))
			continue
		}

		switch outcome {
		case expiryEnded:
			ended++
		case expiryPrompted:
			prompted++
		}
	}

	if ended > 0 || prompted > 0 {
		slog.Info("Expired auctions swept",
			slog.String("type", "auction"),
			slog.Int("ended", ended),
			slog.Int("prompted", prompted))
	}
	return ended, nil
}

func (e *Engine) resolveExpired(ctx context.Context, listingID int64) (expiryOutcome, error) {
	now := e.now()
	outcome := expiryNone
	var listing *models.Listing

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if l.Status.Terminal() {
			return ErrAlreadyResolved
		}
		if l.Status != models.ListingStatusPublished || !l.IsAuction || !l.Expired(now) || l.ExpiryPromptedAt != nil {
			return nil
		}

		if l.CurrentBid > l.StartingPrice {
			l.ExpiryPromptedAt = &now
			if err := tx.Save(ctx, "expiry_prompted_at"); err != nil {
				return err
			}
			outcome = expiryPrompted
		} else {
			l.Status = models.ListingStatusEnded
			l.ResolvedAt = &now
			if err := tx.Save(ctx, "status", "resolved_at"); err != nil {
				return err
			}
			outcome = expiryEnded
		}

		listing = snapshot(l)
		return nil
	})
	if err != nil {
		return expiryNone, e.fail("resolve", listingID, err)
	}

	switch outcome {
	case expiryPrompted:
		e.promptOwner(ctx, listing)
	case expiryEnded:
		participants, err := e.repo.GetParticipants(ctx, listingID, true)
		if err != nil {
			slog.Warn("Failed to load participants for expiry broadcast",
				slog.String("type", "auction"),
				slog.Int64("listing_id", listingID),
				slog.Any("error", err))
		}
		deliveries := []Delivery{{UserID: listing.OwnerID, Message: e.views.NoBids(listing)}}
		deliveries = append(deliveries, broadcast(participants, e.views.NoBids(listing), listing.OwnerID)...)
		e.notifier.Deliver(ctx, deliveries)
		e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Ended(listing))
	}
	return outcome, nil
}

func (e *Engine) promptOwner(ctx context.Context, listing *models.Listing) {
	leader, err := e.repo.GetHighestBid(ctx, listing.ID)
	if err != nil {
		slog.Error("Failed to load leader for expiry prompt",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listing.ID),
			slog.Any("error", err))
		return
	}

	participants, err := e.repo.GetParticipants(ctx, listing.ID, true)
	if err != nil {
		slog.Warn("Failed to load participants for expiry broadcast",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listing.ID),
			slog.Any("error", err))
	}

	deliveries := []Delivery{{UserID: listing.OwnerID, Message: e.views.ExpiryPrompt(listing, leader)}}
	deliveries = append(deliveries, broadcast(participants, e.views.AwaitingParticipants(listing), listing.OwnerID)...)
	e.notifier.Deliver(ctx, deliveries)
	e.notifier.UpdateView(ctx, listing.ViewRef, e.views.AwaitingDecision(listing))
}
