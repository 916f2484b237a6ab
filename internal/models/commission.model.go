package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "PENDING"
	CommissionStatusApplied CommissionStatus = "APPLIED"
)

// Commission is created PENDING when a booking is confirmed and flipped to APPLIED
// exactly once, in the same unit that debits the cleaner's wallet.
type Commission struct {
	BaseUUIDModel
	CleanerID  uuid.UUID        `gorm:"type:uuid;not null;index"            json:"cleanerId"`
	BookingID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex"      json:"bookingId"`
	Percentage decimal.Decimal  `gorm:"type:decimal(5,4);not null"          json:"percentage"`
	Amount     decimal.Decimal  `gorm:"type:decimal(12,2);not null"         json:"amount"`
	IsFreeJob  bool             `gorm:"not null;default:false"              json:"isFreeJob"`
	Status     CommissionStatus `gorm:"type:varchar(16);not null;index"     json:"status"`
	AppliedAt  *time.Time       `                                           json:"appliedAt,omitempty"`
}
