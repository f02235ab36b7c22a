package auction

import (
	"context"
	"log/slog"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
)

// Join enrolls who as an active participant of a live auction. Joining again
// is a no-op. A user may be an active bidder of only one live auction at a
// time; owners are always members of their own auctions.
func (e *Engine) Join(ctx context.Context, listingID int64, who Identity) (*models.AuctionParticipant, error) {
	now := e.now()
	var (
		participant *models.AuctionParticipant
		listing     *models.Listing
		joined      bool
	)

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		l := tx.Listing()
		if err := checkOpen(l, now); err != nil {
			return err
		}

		existing, err := tx.GetParticipant(ctx, who.ID)
		if err != nil && !repositories.IsNotFound(err) {
			return err
		}
		if existing != nil && existing.IsActive {
			participant = existing
			return nil
		}

		if l.OwnerID != who.ID {
			live, err := tx.HasLiveParticipation(ctx, who.ID, now)
			if err != nil {
				return err
			}
			if live {
				return ErrAlreadyParticipating
			}
		}

		p := existing
		if p == nil {
			p = &models.AuctionParticipant{UserID: who.ID}
		}
		p.Username = who.Username
		p.DisplayName = who.DisplayName
		p.IsActive = true
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}

		participant = p
		listing = snapshot(l)
		joined = l.OwnerID != who.ID
		return nil
	})
	if err != nil {
		return nil, e.fail("join", listingID, err)
	}

	if joined {
		slog.Info("Participant joined",
			slog.String("type", "auction"),
			slog.Int64("listing_id", listingID),
			slog.String("user_id", who.ID))

		participants, err := e.repo.GetParticipants(ctx, listingID, true)
		if err != nil {
			slog.Warn("Failed to load participants for join broadcast",
				slog.String("type", "auction"),
				slog.Int64("listing_id", listingID),
				slog.Any("error", err))
		}

		deliveries := []Delivery{{UserID: who.ID, Message: e.views.Joined(listing)}}
		msg := e.views.NewParticipant(listing, who.Name(), bidders(listing, participants))
		deliveries = append(deliveries, broadcast(participants, msg, who.ID, listing.OwnerID)...)
		e.notifier.Deliver(ctx, deliveries)
		e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Public(listing, bidders(listing, participants), e.now()))
	}
	return participant, nil
}

// Leave deactivates the membership of userID. It reports whether a membership
// record existed; leaving twice changes nothing and notifies no one.
func (e *Engine) Leave(ctx context.Context, listingID int64, userID string) (bool, error) {
	var (
		listing *models.Listing
		leaver  *models.AuctionParticipant
		found   bool
	)

	err := e.repo.WithListingLock(ctx, listingID, func(ctx context.Context, tx repositories.ListingTx) error {
		existing, err := tx.GetParticipant(ctx, userID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil
			}
			return err
		}
		found = true
		if !existing.IsActive {
			return nil
		}

		existing.IsActive = false
		if err := tx.SaveParticipant(ctx, existing); err != nil {
			return err
		}

		leaver = existing
		listing = snapshot(tx.Listing())
		return nil
	})
	if err != nil {
		return false, e.fail("leave", listingID, err)
	}
	if leaver == nil {
		return found, nil
	}

	slog.Info("Participant left",
		slog.String("type", "auction"),
		slog.Int64("listing_id", listingID),
		slog.String("user_id", userID))

	if listing.Status == models.ListingStatusPublished {
		participants, err := e.repo.GetParticipants(ctx, listingID, true)
		if err != nil {
			slog.Warn("Failed to load participants for leave broadcast",
				slog.String("type", "auction"),
				slog.Int64("listing_id", listingID),
				slog.Any("error", err))
		}
		msg := e.views.Left(listing, leaver.Name(), bidders(listing, participants))
		e.notifier.Deliver(ctx, broadcast(participants, msg, userID))
		e.notifier.UpdateView(ctx, listing.ViewRef, e.views.Public(listing, bidders(listing, participants), e.now()))
	}
	return true, nil
}

// ActiveMembers lists the active participants of a listing, the owner included.
func (e *Engine) ActiveMembers(ctx context.Context, listingID int64) ([]*models.AuctionParticipant, error) {
	participants, err := e.repo.GetParticipants(ctx, listingID, true)
	if err != nil {
		return nil, e.fail("list members of", listingID, err)
	}
	return participants, nil
}

// CurrentActiveAuction resolves the live auction userID bids in. When more
// than one membership is live the most recently updated one wins.
func (e *Engine) CurrentActiveAuction(ctx context.Context, userID string) (*models.AuctionParticipant, error) {
	participations, err := e.repo.GetLiveParticipations(ctx, userID, e.now())
	if err != nil {
		return nil, err
	}
	if len(participations) == 0 {
		return nil, ErrNotFound
	}
	return participations[0], nil
}
