package database

import (
	"log"

	"github.com/applyforge/applyforge-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connection established")

	// Migration: This creates the tables in Postgres automatically
	log.Println("Running Migrations...")
	if err := Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}
	return db
}

// Migrate is separate from Connect so tests can run it against sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Experience{},
		&models.Achievement{},
		&models.Job{},
		&models.IntakeSession{},
		&models.IntakeMessage{},
		&models.Proposal{},
		&models.Document{},
		&models.DocumentVersion{},
	)
}
