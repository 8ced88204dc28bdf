package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promoHub/business/allocation"
	"promoHub/domain"
)

type PrincipalRepository struct {
	DB *gorm.DB
}

func NewPrincipalRepository(db *gorm.DB) *PrincipalRepository {
	return &PrincipalRepository{DB: db}
}

var _ allocation.PrincipalRepository = (*PrincipalRepository)(nil)

func (r *PrincipalRepository) FindByID(ctx context.Context, id uint) (domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return domain.Principal{}, fmt.Errorf("context error: %w", err)
	}

	var p domain.Principal
	if err := conn(ctx, r.DB).First(&p, id).Error; err != nil {
		return domain.Principal{}, notFound(err, "principal")
	}
	return p, nil
}

func (r *PrincipalRepository) Upsert(ctx context.Context, p *domain.Principal) error {
	err := conn(ctx, r.DB).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "role", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert principal %q: %w", p.Handle, err)
	}
	return conn(ctx, r.DB).Where("handle = ?", p.Handle).First(p).Error
}
