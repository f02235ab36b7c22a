package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement"`
	DiscordID   string    `bun:"discord_id,notnull,unique"`
	Username    string    `bun:"username,notnull"`
	DisplayName string    `bun:"display_name"`
	Balance     int64     `bun:"balance,notnull,default:0"`
	IsAdmin     bool      `bun:"is_admin,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
