package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Wallet balances are in MAD and may go negative when commissions exceed recharges.
type Wallet struct {
	OwnerID   uuid.UUID       `gorm:"type:uuid;primaryKey"            json:"ownerId"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null"     json:"balance"`
	CreatedAt time.Time       `gorm:"not null"                        json:"createdAt"`
	UpdatedAt time.Time       `gorm:"not null"                        json:"updatedAt"`
}

type WalletTransactionType string

const (
	WalletTransactionRecharge   WalletTransactionType = "RECHARGE"
	WalletTransactionCommission WalletTransactionType = "COMMISSION"
	WalletTransactionAdjustment WalletTransactionType = "ADJUSTMENT"
	WalletTransactionPayout     WalletTransactionType = "PAYOUT"
)

type WalletTransaction struct {
	AppendOnlyModel
	OwnerID        uuid.UUID             `gorm:"type:uuid;not null;index"         json:"ownerId"`
	Type           WalletTransactionType `gorm:"type:varchar(16);not null"        json:"type"`
	Amount         decimal.Decimal       `gorm:"type:decimal(12,2);not null"      json:"amount"`
	BookingID      *uuid.UUID            `gorm:"type:uuid;index"                  json:"bookingId,omitempty"`
	IdempotencyKey *string               `gorm:"type:varchar(128);uniqueIndex"    json:"idempotencyKey,omitempty"`
	Metadata       datatypes.JSONMap     `gorm:"type:jsonb"                       json:"metadata,omitempty"`
}
