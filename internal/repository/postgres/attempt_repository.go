package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"promoHub/business/allocation"
	"promoHub/business/eligibility"
	"promoHub/business/history"
	"promoHub/domain"
)

// AttemptRepository is the append-only audit log of allocation attempts.
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

var (
	_ allocation.AttemptLog  = (*AttemptRepository)(nil)
	_ eligibility.AttemptLog = (*AttemptRepository)(nil)
	_ history.Repository     = (*AttemptRepository)(nil)
)

func (r *AttemptRepository) Append(ctx context.Context, attempt *domain.AllocationAttempt) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	attempt.CreatedAt = attempt.CreatedAt.UTC()
	if err := conn(ctx, r.DB).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to append allocation attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) quotaScope(ctx context.Context) *gorm.DB {
	return conn(ctx, r.DB).Model(&domain.AllocationAttempt{}).Where("outcome IN ?", domain.QuotaOutcomes)
}

func (r *AttemptRepository) CountForPrincipal(ctx context.Context, principalID, poolID uint, since time.Time) (int64, error) {
	var n int64
	err := r.quotaScope(ctx).
		Where("pool_id = ? AND principal_id = ? AND created_at >= ?", poolID, principalID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count principal attempts: %w", err)
	}
	return n, nil
}

func (r *AttemptRepository) CountForPool(ctx context.Context, poolID uint, since time.Time) (int64, error) {
	var n int64
	err := r.quotaScope(ctx).
		Where("pool_id = ? AND created_at >= ?", poolID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pool attempts: %w", err)
	}
	return n, nil
}

func (r *AttemptRepository) LastForPrincipal(ctx context.Context, principalID, poolID uint) (*domain.AllocationAttempt, error) {
	var a domain.AllocationAttempt
	err := r.quotaScope(ctx).
		Where("pool_id = ? AND principal_id = ?", poolID, principalID).
		Order("created_at DESC, id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last attempt: %w", err)
	}
	return &a, nil
}

func (r *AttemptRepository) ListForPrincipal(ctx context.Context, principalID uint, limit int) ([]domain.AllocationAttempt, error) {
	var rows []domain.AllocationAttempt
	err := conn(ctx, r.DB).
		Where("principal_id = ?", principalID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return rows, nil
}

func (r *AttemptRepository) CountByOutcome(ctx context.Context, poolID uint, since time.Time) ([]domain.OutcomeCount, error) {
	var rows []domain.OutcomeCount
	err := conn(ctx, r.DB).
		Model(&domain.AllocationAttempt{}).
		Select("outcome, unit_id, COUNT(*) AS count").
		Where("pool_id = ? AND created_at >= ?", poolID, since.UTC()).
		Group("outcome, unit_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return rows, nil
}

func (r *AttemptRepository) ListSince(ctx context.Context, poolID uint, since time.Time) ([]domain.AllocationAttempt, error) {
	var rows []domain.AllocationAttempt
	err := conn(ctx, r.DB).
		Where("pool_id = ? AND created_at >= ?", poolID, since.UTC()).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return rows, nil
}

func (r *AttemptRepository) RecentWins(ctx context.Context, poolID uint, limit int) ([]domain.AllocationAttempt, error) {
	var rows []domain.AllocationAttempt
	err := conn(ctx, r.DB).
		Where("pool_id = ? AND outcome = ? AND reward_type <> ?", poolID, domain.OutcomeAllocated, domain.RewardNoWin).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wins: %w", err)
	}
	return rows, nil
}
