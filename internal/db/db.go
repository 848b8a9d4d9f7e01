package db

import (
	"fmt"
	"time"

	"notesy/internal/auth"
	"notesy/internal/jobs"
	"notesy/internal/note"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&note.Note{},
		&jobs.Job{},
		&auth.User{},
	); err != nil {
		return err
	}

	stmts := []string{
		// tag filter (GIN for text[])
		`create index if not exists idx_notes_tags on notes using gin (tags);`,
		`create index if not exists idx_notes_owner_updated on notes(owner_id, updated_at desc);`,
		`create index if not exists idx_notes_owner_category on notes(owner_id, category);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
