package migrations

import (
	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns the ordered set of migrations that bring a fresh
// database up to the current job-plane schema (§6: Request, Job, Part,
// WorkerHeartbeat).
func AllMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "create job plane schema",
			Up:          migrateJobPlaneSchema,
			Down:        dropJobPlaneSchema,
		},
	}
}

func migrateJobPlaneSchema(tx *gorm.DB) error {
	return tx.AutoMigrate(
		&models.Request{},
		&models.Job{},
		&models.Part{},
		&models.WorkerHeartbeat{},
	)
}

func dropJobPlaneSchema(tx *gorm.DB) error {
	return tx.Migrator().DropTable(
		&models.Part{},
		&models.Job{},
		&models.Request{},
		&models.WorkerHeartbeat{},
	)
}
