package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowermarket/market-bot/marketbot/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// BaseRepository holds what every bun repository shares: the handle and a
// per-query timeout.
type BaseRepository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{
		db:      db,
		timeout: config.DefaultQueryTimeout,
	}
}

// RepositoryError wraps a storage failure with the operation and entity it hit.
type RepositoryError struct {
	Operation string
	Entity    string
	Err       error
}

func (re *RepositoryError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", re.Operation, re.Entity, re.Err)
}

func (re *RepositoryError) Unwrap() error {
	return re.Err
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", nfe.Entity, nfe.ID)
}

// ConflictError reports a row that exists already or is no longer in the
// state the caller expected.
type ConflictError struct {
	Entity string
	Field  string
	Value  any
}

func (ce *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict on %s=%v", ce.Entity, ce.Field, ce.Value)
}

func (br *BaseRepository) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, br.timeout)
}

func (br *BaseRepository) HandleError(operation, entity string, err error) error {
	return HandleErrorWithID(operation, entity, nil, err)
}

// HandleErrorWithID classifies err: no rows becomes NotFoundError, a unique
// violation becomes ConflictError, the rest is wrapped in RepositoryError.
// Errors that are already classified pass through.
func HandleErrorWithID(operation, entity string, id any, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsConflict(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		return &ConflictError{Entity: entity, Field: pgErr.Field('n'), Value: id}
	}

	return &RepositoryError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
