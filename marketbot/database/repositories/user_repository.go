package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	// Create inserts user unless the discord id already exists. It reports
	// whether a row was inserted and always loads the stored row into user.
	Create(ctx context.Context, user *models.User) (bool, error)
	AdjustBalance(ctx context.Context, discordID string, amount int64) error
	// Totals counts users and sums their balances.
	Totals(ctx context.Context) (Totals, error)
}

// Totals is a row count together with the sum of an amount column.
type Totals struct {
	Count  int
	Amount int64
}

type userRepository struct {
	*BaseRepository
	txManager *utils.TransactionManager
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db),
		txManager:      utils.NewTransactionManager(db),
	}
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "user", discordID, err)
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (discord_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	inserted := false
	if affected, _ := result.RowsAffected(); affected > 0 {
		inserted = true
	}

	stored, err := r.GetByDiscordID(ctx, user.DiscordID)
	if err != nil {
		return false, err
	}
	*user = *stored
	return inserted, nil
}

func (r *userRepository) AdjustBalance(ctx context.Context, discordID string, amount int64) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if err := r.txManager.AdjustBalance(timeoutCtx, r.db, discordID, amount); err != nil {
		if err == utils.ErrInsufficientBalance {
			return err
		}
		return HandleErrorWithID("adjust_balance", "user", discordID, err)
	}
	return nil
}

func (r *userRepository) Totals(ctx context.Context) (Totals, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var totals Totals
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(balance), 0)").
		Scan(ctx, &totals.Count, &totals.Amount)
	if err != nil {
		return Totals{}, r.HandleError("sum", "user", err)
	}
	return totals, nil
}
