package domain

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Principal is the authenticated subject of an attempt. The engine only reads it.
type Principal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Handle    string    `gorm:"column:handle;uniqueIndex;not null" json:"handle"`
	Tier      int       `gorm:"column:tier;not null" json:"tier"`
	Role      string    `gorm:"column:role;type:varchar(20);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Principal) TableName() string {
	return "principals"
}
