package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RewardType string

const (
	RewardCash         RewardType = "CASH"
	RewardCredit       RewardType = "SITE_CREDIT"
	RewardPoints       RewardType = "POINTS"
	RewardFreeTicket   RewardType = "FREE_TICKET"
	RewardBonusAttempt RewardType = "BONUS_ATTEMPT"
	RewardNoWin        RewardType = "NO_WIN"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardCash, RewardCredit, RewardPoints, RewardFreeTicket, RewardBonusAttempt, RewardNoWin:
		return true
	}
	return false
}

// Credits reports whether the reward is paid into a wallet.
func (t RewardType) Credits() bool {
	return t == RewardCash || t == RewardCredit || t == RewardPoints
}

// RewardUnit is one allocable prize of a pool. Capacity nil means unlimited
// stock. TicketNumber is set for instant wins bound to one ticket.
type RewardUnit struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PoolID           uint            `gorm:"column:pool_id;not null;uniqueIndex:idx_unit_pool_label,priority:1" json:"pool_id"`
	Label            string          `gorm:"column:label;not null;uniqueIndex:idx_unit_pool_label,priority:2" json:"label"`
	Type             RewardType      `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Magnitude        decimal.Decimal `gorm:"column:magnitude;type:numeric(20,2);not null" json:"magnitude"`
	Weight           float64         `gorm:"column:weight;not null" json:"weight"`
	Capacity         *int            `gorm:"column:capacity" json:"capacity,omitempty"`
	Consumed         int             `gorm:"column:consumed;not null;check:chk_reward_units_stock,capacity IS NULL OR consumed <= capacity" json:"consumed"`
	IsConsolation    bool            `gorm:"column:is_consolation;not null" json:"is_consolation"`
	TicketNumber     *int64          `gorm:"column:ticket_number;index" json:"ticket_number,omitempty"`
	TicketPoolID     *uint           `gorm:"column:ticket_pool_id" json:"ticket_pool_id,omitempty"`
	BonusExpiryHours int             `gorm:"column:bonus_expiry_hours;not null" json:"bonus_expiry_hours"`
	ClaimedBy        *uint           `gorm:"column:claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt        *time.Time      `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (RewardUnit) TableName() string {
	return "reward_units"
}

// HasStock reports whether the unit can still be allocated.
func (u RewardUnit) HasStock() bool {
	if u.TicketNumber != nil && u.ClaimedBy != nil {
		return false
	}
	return u.Capacity == nil || u.Consumed < *u.Capacity
}

// Remaining returns the units left, or nil for unlimited stock.
func (u RewardUnit) Remaining() *int {
	if u.Capacity == nil {
		return nil
	}
	left := *u.Capacity - u.Consumed
	if left < 0 {
		left = 0
	}
	return &left
}

// BeforeDelete refuses to drop a unit whose stock is partially consumed.
func (u *RewardUnit) BeforeDelete(tx *gorm.DB) error {
	if u.Consumed > 0 && (u.Capacity == nil || u.Consumed < *u.Capacity) {
		return ErrUnitPartiallyConsumed
	}
	return nil
}
