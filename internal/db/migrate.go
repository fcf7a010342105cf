package db

import (
	"fmt"

	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/gorm"
)

// migrationModels lists every table owned by the service, in dependency order.
func migrationModels() []any {
	return []any{
		&models.User{},
		&models.Admin{},
		&models.Setting{},
		&models.CreditPackage{},
		&models.CreditAccount{},
		&models.CreditEvent{},
	}
}

// Migrate creates or updates the schema.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(migrationModels()...); errMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errMigrate)
	}
	return nil
}
