// Package memstore keeps listings, bids and participants in process memory.
// It implements repositories.ListingRepository with a mutex per listing and
// commit-on-success semantics.
package memstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/database/repositories"
	"github.com/puzpuzpuz/xsync/v3"
)

type Store struct {
	mu           sync.RWMutex
	listings     map[int64]*models.Listing
	bids         map[int64][]*models.AuctionBid
	bidIndex     map[int64]*models.AuctionBid
	participants map[int64]map[string]*models.AuctionParticipant

	locks *xsync.MapOf[int64, *sync.Mutex]

	nextListingID     atomic.Int64
	nextBidID         atomic.Int64
	nextParticipantID atomic.Int64
}

var _ repositories.ListingRepository = (*Store)(nil)

func New() *Store {
	return &Store{
		listings:     make(map[int64]*models.Listing),
		bids:         make(map[int64][]*models.AuctionBid),
		bidIndex:     make(map[int64]*models.AuctionBid),
		participants: make(map[int64]map[string]*models.AuctionParticipant),
		locks:        xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

func (s *Store) Create(_ context.Context, listing *models.Listing) error {
	now := time.Now()
	listing.ID = s.nextListingID.Add(1)
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.Status == "" {
		listing.Status = models.ListingStatusPending
	}

	s.mu.Lock()
	s.listings[listing.ID] = cloneListing(listing)
	s.mu.Unlock()
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "listing", ID: id}
	}
	return cloneListing(listing), nil
}

func (s *Store) GetByOwner(_ context.Context, ownerID string) ([]*models.Listing, error) {
	return s.filterListings(func(l *models.Listing) bool {
		return l.OwnerID == ownerID
	}, func(a, b *models.Listing) bool {
		return a.ID > b.ID
	}), nil
}

func (s *Store) GetPublishedAuctions(_ context.Context) ([]*models.Listing, error) {
	return s.filterListings(func(l *models.Listing) bool {
		return l.IsAuction && l.Status == models.ListingStatusPublished
	}, func(a, b *models.Listing) bool {
		return a.ID > b.ID
	}), nil
}

func (s *Store) GetExpired(_ context.Context, now time.Time) ([]*models.Listing, error) {
	return s.filterListings(func(l *models.Listing) bool {
		return l.IsAuction &&
			l.Status == models.ListingStatusPublished &&
			l.Expired(now) &&
			l.ExpiryPromptedAt == nil
	}, func(a, b *models.Listing) bool {
		return a.Deadline.Before(*b.Deadline)
	}), nil
}

func (s *Store) GetBid(_ context.Context, bidID int64) (*models.AuctionBid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bidIndex[bidID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "auction_bid", ID: bidID}
	}
	return cloneBid(bid), nil
}

func (s *Store) GetBids(_ context.Context, listingID int64) ([]*models.AuctionBid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]*models.AuctionBid, 0, len(s.bids[listingID]))
	for _, bid := range s.bids[listingID] {
		bids = append(bids, cloneBid(bid))
	}
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].ID > bids[j].ID
	})
	return bids, nil
}

func (s *Store) GetHighestBid(ctx context.Context, listingID int64) (*models.AuctionBid, error) {
	bids, _ := s.GetBids(ctx, listingID)
	if len(bids) == 0 {
		return nil, &repositories.NotFoundError{Entity: "auction_bid", ID: listingID}
	}
	return bids[0], nil
}

func (s *Store) GetParticipants(_ context.Context, listingID int64, activeOnly bool) ([]*models.AuctionParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var participants []*models.AuctionParticipant
	for _, p := range s.participants[listingID] {
		if activeOnly && !p.IsActive {
			continue
		}
		participants = append(participants, cloneParticipant(p))
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})
	return participants, nil
}

func (s *Store) GetLiveParticipations(_ context.Context, userID string, now time.Time) ([]*models.AuctionParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participations := s.liveParticipationsLocked(userID, now, 0)
	sort.Slice(participations, func(i, j int) bool {
		if !participations[i].UpdatedAt.Equal(participations[j].UpdatedAt) {
			return participations[i].UpdatedAt.After(participations[j].UpdatedAt)
		}
		return participations[i].ID > participations[j].ID
	})
	return participations, nil
}

func (s *Store) WithListingLock(ctx context.Context, listingID int64, fn func(ctx context.Context, tx repositories.ListingTx) error) error {
	lock, _ := s.locks.LoadOrCompute(listingID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	lock.Lock()
	defer lock.Unlock()

	listing, err := s.GetByID(ctx, listingID)
	if err != nil {
		return err
	}

	tx := &listingTx{
		store:        s,
		listing:      listing,
		participants: make(map[string]*models.AuctionParticipant),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *listingTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.listing.ID
	if tx.dirty {
		s.listings[id] = cloneListing(tx.listing)
	}
	for _, bid := range tx.bids {
		stored := cloneBid(bid)
		s.bids[id] = append(s.bids[id], stored)
		s.bidIndex[bid.ID] = stored
	}
	if len(tx.participants) > 0 && s.participants[id] == nil {
		s.participants[id] = make(map[string]*models.AuctionParticipant)
	}
	for userID, p := range tx.participants {
		s.participants[id][userID] = cloneParticipant(p)
	}
}

func (s *Store) filterListings(keep func(*models.Listing) bool, less func(a, b *models.Listing) bool) []*models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var listings []*models.Listing
	for _, l := range s.listings {
		if keep(l) {
			listings = append(listings, cloneListing(l))
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		return less(listings[i], listings[j])
	})
	return listings
}

// liveParticipationsLocked expects s.mu to be held.
func (s *Store) liveParticipationsLocked(userID string, now time.Time, excludeListing int64) []*models.AuctionParticipant {
	var participations []*models.AuctionParticipant
	for listingID, members := range s.participants {
		if listingID == excludeListing {
			continue
		}
		p, ok := members[userID]
		if !ok || !p.IsActive {
			continue
		}
		l := s.listings[listingID]
		if l == nil || !l.IsAuction || l.Status != models.ListingStatusPublished || l.OwnerID == userID || l.Expired(now) {
			continue
		}
		participations = append(participations, cloneParticipant(p))
	}
	return participations
}

type listingTx struct {
	store        *Store
	listing      *models.Listing
	dirty        bool
	bids         []*models.AuctionBid
	participants map[string]*models.AuctionParticipant
}

func (t *listingTx) Listing() *models.Listing {
	return t.listing
}

func (t *listingTx) Save(_ context.Context, _ ...string) error {
	t.listing.UpdatedAt = time.Now()
	t.dirty = true
	return nil
}

func (t *listingTx) InsertBid(_ context.Context, bid *models.AuctionBid) error {
	bid.ID = t.store.nextBidID.Add(1)
	bid.ListingID = t.listing.ID
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}
	t.bids = append(t.bids, cloneBid(bid))
	return nil
}

func (t *listingTx) GetBid(ctx context.Context, bidID int64) (*models.AuctionBid, error) {
	for _, bid := range t.bids {
		if bid.ID == bidID {
			return cloneBid(bid), nil
		}
	}
	return t.store.GetBid(ctx, bidID)
}

func (t *listingTx) GetParticipant(_ context.Context, userID string) (*models.AuctionParticipant, error) {
	if p, ok := t.participants[userID]; ok {
		return cloneParticipant(p), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	p, ok := t.store.participants[t.listing.ID][userID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "auction_participant", ID: userID}
	}
	return cloneParticipant(p), nil
}

func (t *listingTx) SaveParticipant(_ context.Context, participant *models.AuctionParticipant) error {
	now := time.Now()
	participant.ListingID = t.listing.ID
	participant.UpdatedAt = now
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = now
	}

	if participant.ID == 0 {
		if existing, err := t.GetParticipant(context.Background(), participant.UserID); err == nil {
			participant.ID = existing.ID
			participant.JoinedAt = existing.JoinedAt
		} else {
			participant.ID = t.store.nextParticipantID.Add(1)
		}
	}

	t.participants[participant.UserID] = cloneParticipant(participant)
	return nil
}

func (t *listingTx) HasLiveParticipation(_ context.Context, userID string, now time.Time) (bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return len(t.store.liveParticipationsLocked(userID, now, t.listing.ID)) > 0, nil
}

func cloneListing(l *models.Listing) *models.Listing {
	c := *l
	c.MediaURLs = append([]string(nil), l.MediaURLs...)
	c.Deadline = cloneTime(l.Deadline)
	c.PublishedAt = cloneTime(l.PublishedAt)
	c.ResolvedAt = cloneTime(l.ResolvedAt)
	c.ExpiryPromptedAt = cloneTime(l.ExpiryPromptedAt)
	if l.SoldBidID != nil {
		id := *l.SoldBidID
		c.SoldBidID = &id
	}
	return &c
}

func cloneBid(b *models.AuctionBid) *models.AuctionBid {
	c := *b
	return &c
}

func cloneParticipant(p *models.AuctionParticipant) *models.AuctionParticipant {
	c := *p
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
