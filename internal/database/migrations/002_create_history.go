package migrations

import (
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/history"
)

// CreateHistory creates the append-only history table and its indexes
func CreateHistory(db *gorm.DB) error {
	if err := db.AutoMigrate(&history.Entry{}); err != nil {
		return err
	}

	indexes := []string{
		// Per-account time series
		`CREATE INDEX IF NOT EXISTS idx_history_account_time
		 ON history(account_number, snapshot_time)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}
	return nil
}
