package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionParticipant struct {
	bun.BaseModel `bun:"table:auction_participants,alias:ap"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ListingID   int64     `bun:"listing_id,notnull,unique:listing_user"`
	UserID      string    `bun:"user_id,notnull,unique:listing_user"`
	Username    string    `bun:"username"`
	DisplayName string    `bun:"display_name"`
	IsActive    bool      `bun:"is_active,notnull"`
	JoinedAt    time.Time `bun:"joined_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Name returns the best human readable label for the participant.
func (p *AuctionParticipant) Name() string {
	return displayName(p.DisplayName, p.Username, p.UserID)
}

type AuctionBid struct {
	bun.BaseModel `bun:"table:auction_bids,alias:ab"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ListingID   int64     `bun:"listing_id,notnull"`
	BidderID    string    `bun:"bidder_id,notnull"`
	Username    string    `bun:"username"`
	DisplayName string    `bun:"display_name"`
	Amount      int64     `bun:"amount,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (b *AuctionBid) Name() string {
	return displayName(b.DisplayName, b.Username, b.BidderID)
}

func displayName(display, username, id string) string {
	switch {
	case display != "":
		return display
	case username != "":
		return username
	default:
		return id
	}
}
