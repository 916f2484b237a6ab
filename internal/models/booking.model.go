package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

type BookingStatus string

const (
	BookingStatusRequested       BookingStatus = "REQUESTED"
	BookingStatusAccepted        BookingStatus = "ACCEPTED"
	BookingStatusOnTheWay        BookingStatus = "ON_THE_WAY"
	BookingStatusArrived         BookingStatus = "ARRIVED"
	BookingStatusInProgress      BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted       BookingStatus = "COMPLETED"
	BookingStatusClientConfirmed BookingStatus = "CLIENT_CONFIRMED"
	BookingStatusCancelled       BookingStatus = "CANCELLED"
	BookingStatusDisputed        BookingStatus = "DISPUTED"
	BookingStatusResolved        BookingStatus = "RESOLVED"
	BookingStatusRejected        BookingStatus = "REJECTED"
)

var AllBookingStatuses = []BookingStatus{
	BookingStatusRequested,
	BookingStatusAccepted,
	BookingStatusOnTheWay,
	BookingStatusArrived,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusClientConfirmed,
	BookingStatusCancelled,
	BookingStatusDisputed,
	BookingStatusResolved,
	BookingStatusRejected,
}

func (s BookingStatus) Valid() bool {
	for _, status := range AllBookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

type Booking struct {
	BaseUUIDModel
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index"          json:"clientId"`
	CleanerID   *uuid.UUID      `gorm:"type:uuid;index"                   json:"cleanerId,omitempty"`
	ServiceID   uuid.UUID       `gorm:"type:uuid;not null"                json:"serviceId"`
	ScheduledAt time.Time       `gorm:"not null"                          json:"scheduledAt"`
	Address     string          `gorm:"type:text;not null"                json:"address"`
	Latitude    float64         `gorm:"type:double precision"             json:"latitude"`
	Longitude   float64         `gorm:"type:double precision"             json:"longitude"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"basePrice"`
	AddonsTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"addonsTotal"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"totalPrice"`
	Status      BookingStatus   `gorm:"type:varchar(32);not null;index"   json:"status"`
	Version     int64           `gorm:"not null;default:1"                json:"version"`
}

// IsClient reports whether userID booked the job.
func (b *Booking) IsClient(userID uuid.UUID) bool {
	return b.ClientID == userID
}

// IsAssignedCleaner reports whether userID is the cleaner who accepted the job.
func (b *Booking) IsAssignedCleaner(userID uuid.UUID) bool {
	return b.CleanerID != nil && *b.CleanerID == userID
}

// PriceConsistent checks the stored total against its components.
func (b *Booking) PriceConsistent() bool {
	return b.TotalPrice.Equal(b.BasePrice.Add(b.AddonsTotal))
}
