package migrations

import (
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/account"
)

// CreateAccounts creates the latest-state table, one row per account
func CreateAccounts(db *gorm.DB) error {
	if err := db.AutoMigrate(&account.Snapshot{}); err != nil {
		return err
	}

	// The stale sweep scans by last report time.
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_accounts_updated_at
		ON accounts(updated_at)`).Error
}
