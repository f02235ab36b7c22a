package repositories

import (
	"context"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/uptrace/bun"
)

type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
	// Set inserts or overwrites the value stored under key.
	Set(ctx context.Context, key, value, updatedBy string) error
}

type settingsRepository struct {
	*BaseRepository
}

func NewSettingsRepository(db *bun.DB) SettingsRepository {
	return &settingsRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *settingsRepository) All(ctx context.Context) (map[string]string, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rows []*models.Setting
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, r.HandleError("list", "setting", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value, updatedBy string) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	setting := &models.Setting{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return HandleErrorWithID("set", "setting", key, err)
	}
	return nil
}
