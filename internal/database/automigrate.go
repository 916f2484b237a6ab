package database

import (
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every booking core table on sql.
func AutoMigrate(sql *gorm.DB) error {
	for _, model := range Models() {
		if err := sql.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}
