package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/uplinepay/backend/internal/models"
	"gorm.io/gorm"
)

// createFraudTables creates alerts and the per-category thresholds.
func createFraudTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_fraud_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.FraudAlert{},
				&models.FraudThreshold{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.FraudThreshold{},
				&models.FraudAlert{},
			)
		},
	}
}
