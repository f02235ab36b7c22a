package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is an operator-editable market value such as a posting price.
type Setting struct {
	bun.BaseModel `bun:"table:market_settings,alias:ms"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedBy string    `bun:"updated_by"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
