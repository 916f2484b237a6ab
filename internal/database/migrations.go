package database

import (
	"cleanmarket/internal/models"
	"cleanmarket/pkg/logger"
)

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	if err := AutoMigrate(db.SQL); err != nil {
		return log.Err("failed to migrate models", err)
	}

	if err := db.createAdditionalIndexes(); err != nil {
		return log.Err("failed to create additional indexes", err)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// Models lists every table owned by the booking core.
func Models() []any {
	return []any{
		&models.Booking{},
		&models.BookingEvent{},
		&models.CleanerProfile{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Commission{},
		&models.DebtThreshold{},
		&models.FraudFlag{},
	}
}

func (db *DB) createAdditionalIndexes() error {
	log := logger.New("database").Function("createAdditionalIndexes")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bookings_status_updated_at ON bookings(status, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_commissions_pending ON commissions(cleaner_id, created_at) WHERE status = 'PENDING'",
		"CREATE INDEX IF NOT EXISTS idx_wallets_balance ON wallets(balance)",
	}

	for _, indexSQL := range indexes {
		if err := db.SQL.Exec(indexSQL).Error; err != nil {
			log.Warn("Failed to create index", "sql", indexSQL, "error", err)
		}
	}

	log.Info("Additional database indexes created")
	return nil
}
