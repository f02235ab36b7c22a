package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DraftRepository interface {
	Create(ctx context.Context, draft *models.ListingDraft) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ListingDraft, error)
	// GetOpenByOwner returns the newest draft of ownerID in the given status.
	GetOpenByOwner(ctx context.Context, ownerID string, status models.DraftStatus) (*models.ListingDraft, error)
	Update(ctx context.Context, draft *models.ListingDraft) error
	// Transition moves a draft from one status to another and reports whether
	// the row was still in the expected status.
	Transition(ctx context.Context, id uuid.UUID, from, to models.DraftStatus) (bool, error)
	// AwaitPayment parks a claimed draft until a top-up arrives and records
	// the fee it was charged against.
	AwaitPayment(ctx context.Context, id uuid.UUID, fee int64) (bool, error)
	CancelOpenByOwner(ctx context.Context, ownerID string) (int, error)
	ExpireBefore(ctx context.Context, now time.Time) (int, error)
}

type draftRepository struct {
	*BaseRepository
}

func NewDraftRepository(db *bun.DB) DraftRepository {
	return &draftRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *draftRepository) Create(ctx context.Context, draft *models.ListingDraft) error {
	now := time.Now()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	_, err := r.db.NewInsert().Model(draft).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (r *draftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ListingDraft, error) {
	draft := new(models.ListingDraft)
	err := r.db.NewSelect().
		Model(draft).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "listing_draft", id, err)
	}
	return draft, nil
}

func (r *draftRepository) GetOpenByOwner(ctx context.Context, ownerID string, status models.DraftStatus) (*models.ListingDraft, error) {
	draft := new(models.ListingDraft)
	err := r.db.NewSelect().
		Model(draft).
		Where("owner_id = ?", ownerID).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get_open", "listing_draft", ownerID, err)
	}
	return draft, nil
}

func (r *draftRepository) Update(ctx context.Context, draft *models.ListingDraft) error {
	draft.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(draft).
		WherePK().
		Exec(ctx)
	if err != nil {
		return HandleErrorWithID("update", "listing_draft", draft.ID, err)
	}
	return nil
}

func (r *draftRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.DraftStatus) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.ListingDraft)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, HandleErrorWithID("transition", "listing_draft", id, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *draftRepository) AwaitPayment(ctx context.Context, id uuid.UUID, fee int64) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.ListingDraft)(nil)).
		Set("status = ?", models.DraftStatusAwaitingPayment).
		Set("required_fee = ?", fee).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.DraftStatusPublished).
		Exec(ctx)
	if err != nil {
		return false, HandleErrorWithID("await_payment", "listing_draft", id, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *draftRepository) CancelOpenByOwner(ctx context.Context, ownerID string) (int, error) {
	result, err := r.db.NewUpdate().
		Model((*models.ListingDraft)(nil)).
		Set("status = ?", models.DraftStatusCancelled).
		Set("updated_at = ?", time.Now()).
		Where("owner_id = ?", ownerID).
		Where("status IN (?)", bun.In([]models.DraftStatus{models.DraftStatusCollecting, models.DraftStatusAwaitingPayment})).
		Exec(ctx)
	if err != nil {
		return 0, r.HandleError("cancel_open", "listing_draft", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (r *draftRepository) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.NewUpdate().
		Model((*models.ListingDraft)(nil)).
		Set("status = ?", models.DraftStatusExpired).
		Set("updated_at = ?", now).
		Where("status IN (?)", bun.In([]models.DraftStatus{models.DraftStatusCollecting, models.DraftStatusAwaitingPayment})).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, r.HandleError("expire", "listing_draft", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}
