package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrInsufficientBalance is returned when a deduction would make a balance negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

const serializationFailure = "40001"

// TransactionOptions selects the isolation level and the time budget of one
// transaction, retries included.
type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	Timeout        time.Duration
	// Retries is how many times a serialization failure is retried.
	Retries int
}

// TransactionManager runs repository work inside bun transactions.
type TransactionManager struct {
	db *bun.DB
}

func NewTransactionManager(db *bun.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

func StandardTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        DefaultTxTimeout,
	}
}

// SerializableTransactionOptions is used where two reviewers or two bidders
// may race on the same row.
func SerializableTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelSerializable,
		Timeout:        DefaultTxTimeout,
		Retries:        SerializationRetries,
	}
}

// WithTransaction runs fn in a transaction and commits it when fn succeeds.
// Serialization failures restart fn from scratch up to opts.Retries times.
func (tm *TransactionManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if opts == nil {
		opts = StandardTransactionOptions()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var err error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		err = tm.runOnce(ctx, opts.IsolationLevel, fn)
		if !isSerializationFailure(err) || ctx.Err() != nil {
			return err
		}
		slog.Debug("Retrying serialized transaction",
			slog.String("type", "db"),
			slog.Int("attempt", attempt+1))
	}
	return err
}

func (tm *TransactionManager) runOnce(ctx context.Context, level sql.IsolationLevel, fn func(context.Context, bun.Tx) error) error {
	tx, err := tm.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == serializationFailure
}

// AdjustBalance adds amount (negative to deduct) to the balance of discordID.
// Deductions never take the balance below zero.
func (tm *TransactionManager) AdjustBalance(ctx context.Context, db bun.IDB, discordID string, amount int64) error {
	q := db.NewUpdate().
		Model((*models.User)(nil)).
		Set("balance = balance + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ?", discordID)
	if amount < 0 {
		q = q.Where("balance >= ?", -amount)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		exists, err := db.NewSelect().
			Model((*models.User)(nil)).
			Where("discord_id = ?", discordID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return fmt.Errorf("user %s not found when updating balance: %w", discordID, sql.ErrNoRows)
		}
		return ErrInsufficientBalance
	}

	return nil
}
