package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/uplinepay/backend/internal/queue"
	"gorm.io/gorm"
)

// createJobTable creates the background-job table.
func createJobTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_job_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&queue.Job{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&queue.Job{})
		},
	}
}
