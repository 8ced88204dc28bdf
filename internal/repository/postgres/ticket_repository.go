package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promoHub/business/ticketing"
	"promoHub/domain"
)

type TicketRepository struct {
	DB *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{DB: db}
}

var _ ticketing.Repository = (*TicketRepository)(nil)

// NextNumbers reserves count numbers under a lock on the pool's sequence row.
func (r *TicketRepository) NextNumbers(ctx context.Context, poolID uint, count int) (int64, error) {
	db := conn(ctx, r.DB)

	seed := domain.TicketSequence{PoolID: poolID, Next: 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("failed to init ticket sequence: %w", err)
	}

	var seq domain.TicketSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pool_id = ?", poolID).
		First(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("failed to lock ticket sequence: %w", err)
	}

	err = db.Model(&domain.TicketSequence{}).
		Where("pool_id = ?", poolID).
		Update("next_number", seq.Next+int64(count)).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance ticket sequence: %w", err)
	}

	return seq.Next, nil
}

func (r *TicketRepository) CreateBatch(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := conn(ctx, r.DB).Create(&tickets).Error; err != nil {
		return fmt.Errorf("failed to create tickets: %w", err)
	}
	return nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id string) (domain.Ticket, error) {
	var t domain.Ticket
	if err := conn(ctx, r.DB).Where("id = ?", id).First(&t).Error; err != nil {
		return domain.Ticket{}, notFound(err, "ticket")
	}
	return t, nil
}

func (r *TicketRepository) Claim(ctx context.Context, id string, principalID uint, at time.Time) (bool, error) {
	res := conn(ctx, r.DB).
		Model(&domain.Ticket{}).
		Where("id = ? AND claimed_by IS NULL", id).
		Updates(map[string]any{
			"claimed_by": principalID,
			"claimed_at": at.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim ticket: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID uint, limit int) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := conn(ctx, r.DB).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (r *TicketRepository) CountByPool(ctx context.Context, poolID uint) (int64, error) {
	var n int64
	if err := conn(ctx, r.DB).Model(&domain.Ticket{}).Where("pool_id = ?", poolID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return n, nil
}
