package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/flowermarket/market-bot/marketbot/logger"
	"github.com/uptrace/bun"
)

// QueryHook logs every bun query: successes at debug level, failures at error level.
type QueryHook struct {
	slowThreshold time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook() *QueryHook {
	return &QueryHook{slowThreshold: 500 * time.Millisecond}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)
	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}

	if err == nil && took >= h.slowThreshold {
		slog.Warn("Slow query",
			slog.String("type", "db"),
			slog.String("operation", event.Operation()),
			slog.String("query", event.Query),
			slog.Duration("took", took))
		return
	}
	logger.LogQuery(event.Query, took, err)
}
