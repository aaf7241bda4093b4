package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/uplinepay/backend/internal/models"
	"gorm.io/gorm"
)

// createPartnerTables creates the partner tree and its activity log.
func createPartnerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_partner_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
				return err
			}
			return tx.AutoMigrate(
				&models.Partner{},
				&models.ReferralRecord{},
				&models.ActivityEvent{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.ActivityEvent{},
				&models.ReferralRecord{},
				&models.Partner{},
			)
		},
	}
}
