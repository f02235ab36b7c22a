// Package events is the in-process event bus connecting the economy services.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// PaymentApproved is published after an operator approves a top-up and the
// balance has been credited.
type PaymentApproved struct {
	PaymentID  int64
	DiscordID  string
	Amount     int64
	DraftID    *uuid.UUID
	ReviewedBy string
}

type Handler[T any] func(ctx context.Context, event T)

// Topic delivers events of one type to its subscribers, in subscription order,
// on the publisher's goroutine.
type Topic[T any] struct {
	name     string
	mu       sync.RWMutex
	handlers []Handler[T]
}

func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

func (t *Topic[T]) Subscribe(handler Handler[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

func (t *Topic[T]) Publish(ctx context.Context, event T) {
	t.mu.RLock()
	handlers := make([]Handler[T], len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, handler := range handlers {
		t.dispatch(ctx, handler, event)
	}
}

func (t *Topic[T]) dispatch(ctx context.Context, handler Handler[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panic",
				slog.String("type", "sys"),
				slog.String("topic", t.name),
				slog.Any("panic", r))
		}
	}()
	handler(ctx, event)
}

type Bus struct {
	PaymentApproved *Topic[PaymentApproved]
}

func NewBus() *Bus {
	return &Bus{
		PaymentApproved: NewTopic[PaymentApproved]("payment_approved"),
	}
}
