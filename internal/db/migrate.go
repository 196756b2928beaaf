package db

import (
	"fmt"
	"time"

	"github.com/atriumhq/atrium/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Room{},
		&models.SessionRoomAssignment{},
		&models.RoomAssignmentRule{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedHQ ensures exactly one headquarters room exists. A fresh database
// gets a default HQ at sort order 0; an existing HQ is left untouched.
func SeedHQ(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Room{}).Where("is_hq = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count hq rooms: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	hq := models.Room{
		ID:        uuid.NewString(),
		Name:      "HQ",
		Icon:      "🏛️",
		SortOrder: 0,
		IsHQ:      true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&hq).Error; err != nil {
		return fmt.Errorf("db: seed hq room: %w", err)
	}
	return nil
}
