package auction

import (
	"context"
	"log/slog"
	"time"

	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/flowermarket/market-bot/marketbot/utils"
)

// Scheduler drives the periodic deadline sweep.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = economicUtils.SweepInterval
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		timeout:  economicUtils.DefaultTxTimeout,
	}
}

// Start registers the sweep with the process manager.
func (s *Scheduler) Start(bpm *utils.BackgroundProcessManager) {
	bpm.StartTicker("auction-sweep", "resolves auctions past their deadline", s.interval, func(ctx context.Context) {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Auction sweep failed",
				slog.String("type", "auction"),
				slog.Any("error", err))
		}
	})
}

// RunOnce performs a single sweep and returns the number of auctions ended.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.engine.SweepExpired(ctx)
}
