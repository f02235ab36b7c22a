package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
)

// Publish moves a pending listing to published. The public view is posted
// first; when that fails the listing stays pending. Auction listings get
// their deadline, start at their starting price and enroll the owner.
func (e *Engine) Publish(ctx context.Context, listingID int64, deadline *time.Time) (string, error) {
	listing, err := e.repo.GetByID(ctx, listingID)
	if err != nil {
		return "", e.fail("publish", listingID, err)
	}
	if listing.Status != models.ListingStatusPending {
		return "", e.fail("publish", listingID, ErrNotPending)
	}

	now := e.now()
	if !listing.IsAuction {
		deadline = nil
	}
	if deadline != nil && !deadline.After(now) {
		return "", e.fail("publish", listingID, ErrInvalidDeadline)
	}

	preview := snapshot(listing)
	applyPublish(preview, "", now, deadline)

	viewRef, err := e.notifier.messenger.SendPublicView(ctx, e.views.Public(preview, 0, now))
	if err != nil {
		return "", fmt.Errorf("failed to post view of listing %d: %w", listingID, err)
	}

	var published *models.Listing
	err = e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if l.Status != models.ListingStatusPending {
			return ErrNotPending
		}

		applyPublish(l, viewRef, now, deadline)
		if err := tx.Save(ctx, "status", "view_ref", "published_at", "deadline", "current_bid", "bid_count", "highest_bidder_id"); err != nil {
			return err
		}

		if l.IsAuction {
			owner := &models.AuctionParticipant{
				UserID:   l.OwnerID,
				Username: l.OwnerHandle,
				IsActive: true,
			}
			if err := tx.SaveParticipant(ctx, owner); err != nil {
				return err
			}
		}

		published = snapshot(l)
		return nil
	})
	if err != nil {
		e.notifier.UpdateView(ctx, viewRef, e.views.Withdrawn(preview))
		return "", e.fail("publish", listingID, err)
	}

	slog.Info("Listing published",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID),
		slog.Bool("auction", published.IsAuction),
		slog.String("view_ref", viewRef))

	return viewRef, nil
}

func applyPublish(l *models.Listing, viewRef string, now time.Time, deadline *time.Time) {
	l.Status = models.ListingStatusPublished
	l.ViewRef = viewRef
	l.PublishedAt = &now
	l.Deadline = deadline
	if l.IsAuction {
		l.CurrentBid = l.StartingPrice
		l.BidCount = 0
		l.HighestBidderID = ""
	}
}

// checkOpen guards operations that need a live auction.
func checkOpen(l *models.Listing, now time.Time) error {
	switch {
	case l.Status != models.ListingStatusPublished:
		return ErrNotPublished
	case !l.IsAuction:
		return ErrNotAuction
	case l.Expired(now):
		return ErrAuctionExpired
	}
	return nil
}

// checkBiddable guards the bid ledger. Expiry by time wins over the stored status.
func checkBiddable(l *models.Listing, bidderID string, now time.Time) error {
	if err := checkOpen(l, now); err != nil {
		return err
	}
	if l.OwnerID == bidderID {
		return ErrOwnerCannotBid
	}
	return nil
}

// checkResolvable guards manual resolution. An empty ownerID skips the ownership check.
func checkResolvable(l *models.Listing, ownerID string) error {
	if ownerID != "" && l.OwnerID != ownerID {
		return ErrNotOwner
	}
	if l.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if l.Status != models.ListingStatusPublished {
		return ErrNotPublished
	}
	return nil
}
