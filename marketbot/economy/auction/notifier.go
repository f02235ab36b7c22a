package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	economicUtils "github.com/flowermarket/market-bot/marketbot/economy/utils"
	"golang.org/x/sync/errgroup"
)

// Delivery is one private message addressed to one user.
type Delivery struct {
	UserID  string
	Message Message
}

// Notifier fans out deliveries through a Messenger. Delivery is best effort:
// a failing recipient is logged and never blocks or fails the others.
type Notifier struct {
	messenger Messenger
	limit     int
	timeout   time.Duration
}

func NewNotifier(messenger Messenger, limit int) *Notifier {
	if limit <= 0 {
		limit = economicUtils.NotifyConcurrency
	}
	return &Notifier{
		messenger: messenger,
		limit:     limit,
		timeout:   economicUtils.NotificationTimeout,
	}
}

// Deliver sends every delivery and returns how many succeeded.
func (n *Notifier) Deliver(ctx context.Context, deliveries []Delivery) int {
	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	g.SetLimit(n.limit)

	seen := make(map[string]struct{}, len(deliveries))
	for _, d := range deliveries {
		if d.UserID == "" {
			continue
		}
		if _, dup := seen[d.UserID]; dup {
			continue
		}
		seen[d.UserID] = struct{}{}

		d := d
		g.Go(func() error {
			if err := n.notify(ctx, d); err != nil {
				slog.Warn("Notification dropped",
					slog.String("type", "notify"),
					slog.String("user_id", d.UserID),
					slog.Any("error", err))
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}

	_ = g.Wait()
	return int(delivered.Load())
}

func (n *Notifier) notify(ctx context.Context, d Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.messenger.Notify(ctx, d.UserID, d.Message); err != nil {
		return fmt.Errorf("%w: user %s: %v", ErrDeliveryFailed, d.UserID, err)
	}
	return nil
}

// UpdateView re-renders a public view. Failures are logged only.
func (n *Notifier) UpdateView(ctx context.Context, viewRef string, view View) {
	if viewRef == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.messenger.UpdatePublicView(ctx, viewRef, view); err != nil {
		slog.Warn("Failed to update public view",
			slog.String("type", "notify"),
			slog.String("view_ref", viewRef),
			slog.Any("error", err))
	}
}

// broadcast addresses msg to every participant except the excluded users.
func broadcast(participants []*models.AuctionParticipant, msg Message, exclude ...string) []Delivery {
	deliveries := make([]Delivery, 0, len(participants))
	for _, p := range participants {
		if contains(exclude, p.UserID) {
			continue
		}
		deliveries = append(deliveries, Delivery{UserID: p.UserID, Message: msg})
	}
	return deliveries
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
