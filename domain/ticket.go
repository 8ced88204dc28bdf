package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ticket is a numbered entry into a pool. OwnerID nil marks an open code
// that any principal may redeem once.
type Ticket struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PoolID    uint       `gorm:"column:pool_id;not null;uniqueIndex:idx_ticket_pool_number,priority:1" json:"pool_id"`
	Number    int64      `gorm:"column:number;not null;uniqueIndex:idx_ticket_pool_number,priority:2" json:"number"`
	OwnerID   *uint      `gorm:"column:owner_id;index" json:"owner_id,omitempty"`
	Reason    string     `gorm:"column:reason" json:"reason"`
	ClaimedBy *uint      `gorm:"column:claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type TicketSequence struct {
	PoolID uint  `gorm:"column:pool_id;primaryKey;autoIncrement:false"`
	Next   int64 `gorm:"column:next_number;not null"`
}

func (TicketSequence) TableName() string {
	return "ticket_sequences"
}
