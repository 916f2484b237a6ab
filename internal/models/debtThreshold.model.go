package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtThreshold overrides the default debt floor for one cleaner.
type DebtThreshold struct {
	CleanerID uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"cleanerId"`
	Threshold decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"threshold"`
	CreatedAt time.Time       `gorm:"not null"                    json:"createdAt"`
	UpdatedAt time.Time       `gorm:"not null"                    json:"updatedAt"`
}
