package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BookingEvent records one status change. Rows are never updated; the event-pruning
// job deletes them once they fall out of the retention window.
type BookingEvent struct {
	AppendOnlyModel
	BookingID      uuid.UUID         `gorm:"type:uuid;not null;index"  json:"bookingId"`
	ActorID        uuid.UUID         `gorm:"type:uuid;not null"        json:"actorId"`
	PreviousStatus *BookingStatus    `gorm:"type:varchar(32)"          json:"previousStatus,omitempty"`
	NewStatus      BookingStatus     `gorm:"type:varchar(32);not null" json:"newStatus"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"                json:"metadata,omitempty"`
}
