package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DraftStatus string

const (
	DraftStatusCollecting      DraftStatus = "collecting"
	DraftStatusAwaitingPayment DraftStatus = "awaiting_payment"
	DraftStatusPublished       DraftStatus = "published"
	DraftStatusCancelled       DraftStatus = "cancelled"
	DraftStatusExpired         DraftStatus = "expired"
)

// Open reports whether the draft can still be submitted.
func (s DraftStatus) Open() bool {
	return s == DraftStatusCollecting || s == DraftStatusAwaitingPayment
}

// ListingDraft is a listing under construction. It survives restarts and is
// consumed when the listing gets published.
type ListingDraft struct {
	bun.BaseModel `bun:"table:listing_drafts,alias:ld"`

	ID              uuid.UUID   `bun:"id,pk,type:uuid"`
	OwnerID         string      `bun:"owner_id,notnull"`
	OwnerHandle     string      `bun:"owner_handle"`
	IsAuction       bool        `bun:"is_auction,notnull"`
	Name            string      `bun:"name,notnull"`
	Description     string      `bun:"description"`
	Price           int64       `bun:"price,notnull"`
	Phone           string      `bun:"phone"`
	Location        string      `bun:"location"`
	DurationMinutes int         `bun:"duration_minutes,notnull,default:0"`
	MediaURLs       []string    `bun:"media_urls,type:jsonb"`
	Status          DraftStatus `bun:"status,notnull"`
	RequiredFee     int64       `bun:"required_fee,notnull,default:0"`
	ListingID       *int64      `bun:"listing_id"`
	ExpiresAt       time.Time   `bun:"expires_at,notnull"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}
