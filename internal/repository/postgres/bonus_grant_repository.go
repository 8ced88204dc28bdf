package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"promoHub/business/allocation"
	"promoHub/business/dispatch"
	"promoHub/business/eligibility"
	"promoHub/domain"
)

type BonusGrantRepository struct {
	DB *gorm.DB
}

func NewBonusGrantRepository(db *gorm.DB) *BonusGrantRepository {
	return &BonusGrantRepository{DB: db}
}

var (
	_ dispatch.BonusGranter   = (*BonusGrantRepository)(nil)
	_ eligibility.BonusGrants = (*BonusGrantRepository)(nil)
	_ allocation.BonusGrants  = (*BonusGrantRepository)(nil)
)

func (r *BonusGrantRepository) Grant(ctx context.Context, grant *domain.BonusGrant) error {
	grant.ExpiresAt = grant.ExpiresAt.UTC()
	if err := conn(ctx, r.DB).Create(grant).Error; err != nil {
		return fmt.Errorf("failed to create bonus grant: %w", err)
	}
	return nil
}

// ActiveGrants lists unused, unexpired grants, soonest expiry first.
func (r *BonusGrantRepository) ActiveGrants(ctx context.Context, principalID, poolID uint, now time.Time) ([]domain.BonusGrant, error) {
	var grants []domain.BonusGrant
	err := conn(ctx, r.DB).
		Where("principal_id = ? AND pool_id = ? AND used_at IS NULL AND expires_at > ?", principalID, poolID, now.UTC()).
		Order("expires_at, id").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus grants: %w", err)
	}
	return grants, nil
}

// MarkUsed spends the grant on attemptID. It reports false when the grant
// was already used.
func (r *BonusGrantRepository) MarkUsed(ctx context.Context, grantID, attemptID uint, at time.Time) (bool, error) {
	res := conn(ctx, r.DB).
		Model(&domain.BonusGrant{}).
		Where("id = ? AND used_at IS NULL", grantID).
		Updates(map[string]any{
			"used_at":            at.UTC(),
			"used_by_attempt_id": attemptID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to use bonus grant: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
