package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptOutcome string

const (
	OutcomeAllocated AttemptOutcome = "ALLOCATED"
	OutcomeConflict  AttemptOutcome = "CONFLICT"
	OutcomeRejected  AttemptOutcome = "REJECTED"
)

// AllocationAttempt is the append-only audit row written for every attempt.
// Rejected rows are kept for disputes but never count toward quotas.
type AllocationAttempt struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	PrincipalID uint              `gorm:"column:principal_id;not null;index:idx_attempt_pool_principal,priority:2" json:"principal_id"`
	PoolID      uint              `gorm:"column:pool_id;not null;index:idx_attempt_pool_principal,priority:1" json:"pool_id"`
	UnitID      *uint             `gorm:"column:unit_id;index" json:"unit_id,omitempty"`
	RewardType  RewardType        `gorm:"column:reward_type;type:varchar(20);not null" json:"reward_type"`
	Magnitude   decimal.Decimal   `gorm:"column:magnitude;type:numeric(20,2);not null" json:"magnitude"`
	Outcome     AttemptOutcome    `gorm:"column:outcome;type:varchar(20);not null" json:"outcome"`
	Reason      string            `gorm:"column:reason" json:"reason,omitempty"`
	Reference   string            `gorm:"column:reference;type:varchar(36);uniqueIndex;not null" json:"reference"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;index" json:"created_at"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (AllocationAttempt) TableName() string {
	return "allocation_attempts"
}

// BeforeUpdate keeps the audit log immutable.
func (a *AllocationAttempt) BeforeUpdate(tx *gorm.DB) error {
	return ErrAttemptImmutable
}

// CountsTowardQuota reports whether the row consumed an attempt slot.
func (a AllocationAttempt) CountsTowardQuota() bool {
	return a.Outcome == OutcomeAllocated || a.Outcome == OutcomeConflict
}

// QuotaOutcomes lists the outcomes that consume an attempt slot.
var QuotaOutcomes = []AttemptOutcome{OutcomeAllocated, OutcomeConflict}
