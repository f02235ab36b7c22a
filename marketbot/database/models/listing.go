package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ListingStatus string

const (
	ListingStatusPending   ListingStatus = "pending"
	ListingStatusPublished ListingStatus = "published"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusEnded     ListingStatus = "ended"
)

// Terminal reports whether no further transition is possible from s.
func (s ListingStatus) Terminal() bool {
	return s == ListingStatusSold || s == ListingStatusEnded
}

type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID          int64  `bun:"id,pk,autoincrement"`
	OwnerUserID int64  `bun:"owner_user_id,notnull"`
	OwnerID     string `bun:"owner_id,notnull"`
	OwnerHandle string `bun:"owner_handle"`

	Name        string   `bun:"name,notnull"`
	Description string   `bun:"description"`
	Phone       string   `bun:"phone"`
	Location    string   `bun:"location"`
	MediaURLs   []string `bun:"media_urls,type:jsonb"`

	IsAuction       bool   `bun:"is_auction,notnull"`
	StartingPrice   int64  `bun:"starting_price,notnull"`
	CurrentBid      int64  `bun:"current_bid,notnull,default:0"`
	BidCount        int    `bun:"bid_count,notnull,default:0"`
	HighestBidderID string `bun:"highest_bidder_id"`

	Status   ListingStatus `bun:"status,notnull"`
	Deadline *time.Time    `bun:"deadline"`
	ViewRef  string        `bun:"view_ref"`

	SoldBidID        *int64     `bun:"sold_bid_id"`
	PublishedAt      *time.Time `bun:"published_at"`
	ResolvedAt       *time.Time `bun:"resolved_at"`
	ExpiryPromptedAt *time.Time `bun:"expiry_prompted_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// CoverURL returns the first media url of the listing, if any.
func (l *Listing) CoverURL() string {
	if len(l.MediaURLs) == 0 {
		return ""
	}
	return l.MediaURLs[0]
}

// Expired reports whether the listing has a deadline at or before now.
func (l *Listing) Expired(now time.Time) bool {
	return l.Deadline != nil && !now.Before(*l.Deadline)
}
