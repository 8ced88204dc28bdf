package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	msqlite "modernc.org/sqlite"

	"promoHub/domain"
)

type txKey struct{}

// TxManager runs units of work in one database transaction. Repositories
// pick the transaction up from the context, so nested calls join the
// outermost transaction instead of opening their own.
type TxManager struct {
	DB *gorm.DB
	// LockTimeout bounds row lock waits on postgres. Zero leaves the
	// server default.
	LockTimeout time.Duration
}

func NewTxManager(db *gorm.DB, lockTimeout time.Duration) *TxManager {
	return &TxManager{DB: db, LockTimeout: lockTimeout}
}

func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.LockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.LockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})

	return translateError(err)
}

// conn returns the transaction carried by ctx, or db outside a transaction.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"

	sqliteBusy   = 5
	sqliteLocked = 6
)

// translateError marks lock waits, serialization failures and deadlines as
// domain.ErrTransient. Other errors pass through unchanged.
func translateError(err error) error {
	if err == nil || errors.Is(err, domain.ErrTransient) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}

	var sqErr *msqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}

	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}
