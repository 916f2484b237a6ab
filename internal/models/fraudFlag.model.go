package models

import (
	"github.com/google/uuid"
)

type FraudFlagType string

const (
	FraudFlagExcessiveDebt            FraudFlagType = "EXCESSIVE_DEBT"
	FraudFlagHighCancellationRate     FraudFlagType = "HIGH_CANCELLATION_RATE"
	FraudFlagSuspiciousBookingPattern FraudFlagType = "SUSPICIOUS_BOOKING_PATTERN"
)

type FraudSeverity string

const (
	FraudSeverityLow    FraudSeverity = "LOW"
	FraudSeverityMedium FraudSeverity = "MEDIUM"
	FraudSeverityHigh   FraudSeverity = "HIGH"
)

// FraudFlag is advisory output for operators and never blocks an action.
type FraudFlag struct {
	AppendOnlyModel
	UserID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_fraud_flags_user_type" json:"userId"`
	Type     FraudFlagType `gorm:"type:varchar(40);not null;index:idx_fraud_flags_user_type" json:"type"`
	Severity FraudSeverity `gorm:"type:varchar(16);not null"                       json:"severity"`
	Reason   string        `gorm:"type:text;not null"                              json:"reason"`
}
