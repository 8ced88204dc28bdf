package domain

import (
	"time"
)

// CREATE TABLE public.pools (
//     id              BIGSERIAL PRIMARY KEY,
//     name            TEXT UNIQUE NOT NULL,
//     kind            VARCHAR(20) NOT NULL,
//     period_type     VARCHAR(20) NOT NULL,
//     per_user_limit  INT NOT NULL,
//     global_limit    INT,
//     cooldown_hours  INT NOT NULL,
//     min_tier        INT NOT NULL,
//     active          BOOLEAN NOT NULL,
//     version         INT NOT NULL,
//     starts_at       TIMESTAMPTZ,
//     ends_at         TIMESTAMPTZ
// );

type PoolKind string

const (
	PoolKindWheel      PoolKind = "WHEEL"
	PoolKindInstantWin PoolKind = "INSTANT_WIN"
)

func (k PoolKind) Valid() bool {
	return k == PoolKindWheel || k == PoolKindInstantWin
}

type PeriodType string

const (
	PeriodDaily    PeriodType = "DAILY"
	PeriodWeekly   PeriodType = "WEEKLY"
	PeriodMonthly  PeriodType = "MONTHLY"
	PeriodCooldown PeriodType = "COOLDOWN"
	PeriodAllTime  PeriodType = "ALL_TIME"
)

// Pool is a wheel or an instant-win set together with its eligibility rules.
// PerUserLimit 0 means the pool has no per-user quota.
type Pool struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Kind          PoolKind   `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	PeriodKey     string     `gorm:"column:period_type;type:varchar(20);not null" json:"period_type"`
	PerUserLimit  int        `gorm:"column:per_user_limit;not null" json:"per_user_limit"`
	GlobalLimit   *int       `gorm:"column:global_limit" json:"global_limit,omitempty"`
	CooldownHours int        `gorm:"column:cooldown_hours;not null" json:"cooldown_hours"`
	MinTier       int        `gorm:"column:min_tier;not null" json:"min_tier"`
	Active        bool       `gorm:"column:active;not null" json:"active"`
	Version       int        `gorm:"column:version;not null" json:"version"`
	StartsAt      *time.Time `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt        *time.Time `gorm:"column:ends_at" json:"ends_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Pool) TableName() string {
	return "pools"
}

// OpenAt reports whether the campaign window of the pool contains t.
func (p Pool) OpenAt(t time.Time) bool {
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && !t.Before(*p.EndsAt) {
		return false
	}
	return true
}
