package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/database/models"
	"github.com/flowermarket/market-bot/marketbot/economy/utils"
	"github.com/uptrace/bun"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetPending(ctx context.Context) ([]*models.Payment, error)
	// Approve marks a pending payment approved and credits its amount in one
	// transaction. A payment that is no longer pending yields a ConflictError.
	Approve(ctx context.Context, id int64, reviewer string) (*models.Payment, error)
	Reject(ctx context.Context, id int64, reviewer string) (*models.Payment, error)
	// ApprovedSince sums payments approved at or after since. A zero since
	// covers all of them.
	ApprovedSince(ctx context.Context, since time.Time) (Totals, error)
}

type paymentRepository struct {
	*BaseRepository
	txManager *utils.TransactionManager
}

func NewPaymentRepository(db *bun.DB) PaymentRepository {
	return &paymentRepository{
		BaseRepository: NewBaseRepository(db),
		txManager:      utils.NewTransactionManager(db),
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	payment.CreatedAt = time.Now()
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}

	_, err := r.db.NewInsert().Model(payment).Returning("id").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	payment := new(models.Payment)
	err := r.db.NewSelect().
		Model(payment).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("get", "payment", id, err)
	}
	return payment, nil
}

func (r *paymentRepository) GetPending(ctx context.Context) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.NewSelect().
		Model(&payments).
		Where("status = ?", models.PaymentStatusPending).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_pending", "payment", err)
	}
	return payments, nil
}

func (r *paymentRepository) Approve(ctx context.Context, id int64, reviewer string) (*models.Payment, error) {
	var payment *models.Payment
	err := r.txManager.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = r.review(ctx, tx, id, reviewer, models.PaymentStatusApproved)
		if err != nil {
			return err
		}
		return r.txManager.AdjustBalance(ctx, tx, payment.DiscordID, payment.Amount)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) Reject(ctx context.Context, id int64, reviewer string) (*models.Payment, error) {
	var payment *models.Payment
	err := r.txManager.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = r.review(ctx, tx, id, reviewer, models.PaymentStatusRejected)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) ApprovedSince(ctx context.Context, since time.Time) (Totals, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q := r.db.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("status = ?", models.PaymentStatusApproved)
	if !since.IsZero() {
		q = q.Where("reviewed_at >= ?", since)
	}

	var totals Totals
	if err := q.Scan(ctx, &totals.Count, &totals.Amount); err != nil {
		return Totals{}, r.HandleError("sum", "payment", err)
	}
	return totals, nil
}

func (r *paymentRepository) review(ctx context.Context, tx bun.Tx, id int64, reviewer string, status models.PaymentStatus) (*models.Payment, error) {
	payment := new(models.Payment)
	err := tx.NewSelect().
		Model(payment).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, HandleErrorWithID("review", "payment", id, err)
	}

	if payment.Status != models.PaymentStatusPending {
		return nil, &ConflictError{Entity: "payment", Field: "status", Value: payment.Status}
	}

	now := time.Now()
	payment.Status = status
	payment.ReviewedBy = reviewer
	payment.ReviewedAt = &now

	_, err = tx.NewUpdate().
		Model(payment).
		Column("status", "reviewed_by", "reviewed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, HandleErrorWithID("review", "payment", id, err)
	}
	return payment, nil
}
