package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promoHub/business/allocation"
	"promoHub/business/history"
	"promoHub/domain"
)

type RewardUnitRepository struct {
	DB *gorm.DB
}

func NewRewardUnitRepository(db *gorm.DB) *RewardUnitRepository {
	return &RewardUnitRepository{DB: db}
}

var (
	_ allocation.UnitRepository = (*RewardUnitRepository)(nil)
	_ history.UnitReader        = (*RewardUnitRepository)(nil)
)

func (r *RewardUnitRepository) ListByPool(ctx context.Context, poolID uint) ([]domain.RewardUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var units []domain.RewardUnit
	if err := conn(ctx, r.DB).Where("pool_id = ?", poolID).Order("id").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to list reward units: %w", err)
	}
	return units, nil
}

// LockByPool loads every unit of the pool FOR UPDATE in id order, so
// concurrent attempts always acquire unit locks in the same sequence.
func (r *RewardUnitRepository) LockByPool(ctx context.Context, poolID uint) ([]domain.RewardUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var units []domain.RewardUnit
	err := conn(ctx, r.DB).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pool_id = ?", poolID).
		Order("id").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock reward units: %w", err)
	}
	return units, nil
}

// Consume takes one unit of stock. It reports false when the unit was
// already exhausted.
func (r *RewardUnitRepository) Consume(ctx context.Context, unitID uint) (bool, error) {
	res := conn(ctx, r.DB).
		Model(&domain.RewardUnit{}).
		Where("id = ? AND (capacity IS NULL OR consumed < capacity)", unitID).
		Updates(map[string]any{
			"consumed":   gorm.Expr("consumed + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume unit %d: %w", unitID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Claim binds a ticket-mapped unit to principalID and takes its stock. It
// reports false when another principal claimed it first.
func (r *RewardUnitRepository) Claim(ctx context.Context, unitID, principalID uint, at time.Time) (bool, error) {
	res := conn(ctx, r.DB).
		Model(&domain.RewardUnit{}).
		Where("id = ? AND claimed_by IS NULL AND (capacity IS NULL OR consumed < capacity)", unitID).
		Updates(map[string]any{
			"claimed_by": principalID,
			"claimed_at": at.UTC(),
			"consumed":   gorm.Expr("consumed + 1"),
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim unit %d: %w", unitID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Upsert inserts the unit or updates its configuration by (pool, label).
// Consumed stock and claims are never overwritten.
func (r *RewardUnitRepository) Upsert(ctx context.Context, unit *domain.RewardUnit) error {
	err := conn(ctx, r.DB).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pool_id"}, {Name: "label"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "magnitude", "weight", "capacity", "is_consolation",
				"ticket_number", "ticket_pool_id", "bonus_expiry_hours", "updated_at",
			}),
		}).
		Create(unit).Error
	if err != nil {
		return fmt.Errorf("failed to upsert unit %q: %w", unit.Label, err)
	}
	return conn(ctx, r.DB).Where("pool_id = ? AND label = ?", unit.PoolID, unit.Label).First(unit).Error
}

func (r *RewardUnitRepository) Delete(ctx context.Context, unit *domain.RewardUnit) error {
	if err := conn(ctx, r.DB).Delete(unit).Error; err != nil {
		return fmt.Errorf("failed to delete unit %d: %w", unit.ID, err)
	}
	return nil
}
