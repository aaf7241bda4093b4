package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/uplinepay/backend/internal/models"
	"gorm.io/gorm"
)

// createCommissionTables creates transactions, subscriptions, the
// product catalog, the commission configuration and distributions.
func createCommissionTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_commission_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Transaction{},
				&models.Subscription{},
				&models.ProductRecord{},
				&models.CommissionTier{},
				&models.BonusRule{},
				&models.CommissionCap{},
				&models.CommissionDistribution{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.CommissionDistribution{},
				&models.CommissionCap{},
				&models.BonusRule{},
				&models.CommissionTier{},
				&models.ProductRecord{},
				&models.Subscription{},
				&models.Transaction{},
			)
		},
	}
}
