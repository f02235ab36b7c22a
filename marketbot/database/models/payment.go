package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID            int64         `bun:"id,pk,autoincrement"`
	UserID        int64         `bun:"user_id,notnull"`
	DiscordID     string        `bun:"discord_id,notnull"`
	Amount        int64         `bun:"amount,notnull"`
	ScreenshotURL string        `bun:"screenshot_url,notnull"`
	Status        PaymentStatus `bun:"status,notnull"`
	DraftID       *uuid.UUID    `bun:"draft_id,type:uuid"`
	ReviewedBy    string        `bun:"reviewed_by"`
	ReviewedAt    *time.Time    `bun:"reviewed_at"`
	CreatedAt     time.Time     `bun:"created_at,notnull,default:current_timestamp"`
}
