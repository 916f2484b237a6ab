package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseUUIDModel is embedded by mutable rows. Bookings and commissions are never deleted,
// so there is no soft-delete column.
type BaseUUIDModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null"             json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null"             json:"updatedAt"`
}

func (m *BaseUUIDModel) BeforeCreate(tx *gorm.DB) error {
	return assignID(&m.ID)
}

// AppendOnlyModel is embedded by ledger-style rows that are written once.
type AppendOnlyModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index"       json:"createdAt"`
}

func (m *AppendOnlyModel) BeforeCreate(tx *gorm.DB) error {
	return assignID(&m.ID)
}

func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	generated, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = generated
	return nil
}

// NewID returns a time-ordered identifier for rows created outside gorm.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
