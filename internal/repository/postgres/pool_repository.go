package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promoHub/business/allocation"
	"promoHub/domain"
)

type PoolRepository struct {
	DB *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{DB: db}
}

var _ allocation.PoolRepository = (*PoolRepository)(nil)

func (r *PoolRepository) FindByID(ctx context.Context, id uint) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, fmt.Errorf("context error: %w", err)
	}

	var pool domain.Pool
	if err := conn(ctx, r.DB).First(&pool, id).Error; err != nil {
		return domain.Pool{}, notFound(err, "pool")
	}
	return pool, nil
}

// LockByID reads the pool row FOR UPDATE. Every attempt on the pool takes
// this lock first, which serializes quota checks against writes.
func (r *PoolRepository) LockByID(ctx context.Context, id uint) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, fmt.Errorf("context error: %w", err)
	}

	var pool domain.Pool
	err := conn(ctx, r.DB).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pool, id).Error
	if err != nil {
		return domain.Pool{}, notFound(err, "pool")
	}
	return pool, nil
}

func (r *PoolRepository) List(ctx context.Context) ([]domain.Pool, error) {
	var pools []domain.Pool
	if err := conn(ctx, r.DB).Order("id").Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return pools, nil
}

// Upsert inserts the pool or updates its rules by name and loads its id.
func (r *PoolRepository) Upsert(ctx context.Context, pool *domain.Pool) error {
	err := conn(ctx, r.DB).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "period_type", "per_user_limit", "global_limit", "cooldown_hours",
				"min_tier", "active", "starts_at", "ends_at", "updated_at",
			}),
		}).
		Create(pool).Error
	if err != nil {
		return fmt.Errorf("failed to upsert pool %q: %w", pool.Name, err)
	}

	// sqlite does not return the id of a row updated by ON CONFLICT
	return conn(ctx, r.DB).Where("name = ?", pool.Name).First(pool).Error
}
