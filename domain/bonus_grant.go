package domain

import "time"

// BonusGrant is one extra attempt on a pool won through a BONUS_ATTEMPT reward.
type BonusGrant struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PrincipalID     uint       `gorm:"column:principal_id;not null;index:idx_bonus_pool_principal,priority:2" json:"principal_id"`
	PoolID          uint       `gorm:"column:pool_id;not null;index:idx_bonus_pool_principal,priority:1" json:"pool_id"`
	SourceAttemptID *uint      `gorm:"column:source_attempt_id" json:"source_attempt_id,omitempty"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	UsedAt          *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	UsedByAttemptID *uint      `gorm:"column:used_by_attempt_id" json:"used_by_attempt_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (BonusGrant) TableName() string {
	return "bonus_grants"
}
