package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/config"
	"github.com/qizhangumich/acams/internal/models"
)

// Connect opens the PostgreSQL connection pool, runs migrations, and returns
// the handle plus a close function for shutdown. The handle is passed to the
// services explicitly; there is no package-level singleton.
func Connect(cfg *config.DatabaseConfig) (*gorm.DB, func() error, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, nil, err
	}

	log.Println("Database migrated successfully")

	return db, sqlDB.Close, nil
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Question{},
		&models.User{},
		&models.UserProgress{},
		&models.WrongBook{},
		&models.QuestionChat{},
		&models.MagicLinkToken{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
