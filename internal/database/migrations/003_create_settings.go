package migrations

import (
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/settings"
)

// CreateSettings creates the dashboard key-value table
func CreateSettings(db *gorm.DB) error {
	return db.AutoMigrate(&settings.Setting{})
}
