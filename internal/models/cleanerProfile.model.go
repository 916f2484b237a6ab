package models

import (
	"time"

	"github.com/google/uuid"
)

type CleanerProfile struct {
	CleanerID          uuid.UUID `gorm:"type:uuid;primaryKey"   json:"cleanerId"`
	CompletedJobsCount int       `gorm:"not null;default:0"     json:"completedJobsCount"`
	CreatedAt          time.Time `gorm:"not null"               json:"createdAt"`
	UpdatedAt          time.Time `gorm:"not null"               json:"updatedAt"`
}
