// internal/storage/db.go
package storage

import (
	"fmt"
	"log"
	"os"

	"fieldtrack_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func OpenDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
	)

	// TranslateError lets handlers match unique-index violations as
	// gorm.ErrDuplicatedKey instead of driver-specific errors.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect database: ", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatal("failed migrate: ", err)
	}

	return db
}

// Migrate is split out so tests can run the same schema on SQLite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Employee{},
		&models.AttendanceRecord{},
		&models.LocationPathPoint{},
	)
}
