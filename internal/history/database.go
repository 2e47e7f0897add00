package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/account"
)

const insertBatchSize = 200

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CopyAccounts copies the current account rows into history under batchID.
// accountNumber 0 copies every account. Reading and writing share one
// transaction so a capture never mixes two states of the same account.
func (d *Database) CopyAccounts(ctx context.Context, accountNumber int64, batchID string, at time.Time) (int, error) {
	var captured int
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Order("account_number")
		if accountNumber != 0 {
			query = query.Where("account_number = ?", accountNumber)
		}

		var snaps []account.Snapshot
		if err := query.Find(&snaps).Error; err != nil {
			return fmt.Errorf("failed to read accounts: %w", err)
		}
		if len(snaps) == 0 {
			return nil
		}

		entries := make([]Entry, 0, len(snaps))
		for _, s := range snaps {
			entries = append(entries, Entry{
				AccountNumber: s.AccountNumber,
				Broker:        s.Broker,
				Metrics:       s.Metrics,
				SnapshotTime:  at,
				BatchID:       batchID,
			})
		}
		if err := tx.CreateInBatches(&entries, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		captured = len(entries)
		return nil
	})
	return captured, err
}

// ListEntries returns entries newest first
func (d *Database) ListEntries(ctx context.Context, f Filter) ([]Entry, error) {
	query := d.db.WithContext(ctx).Order("snapshot_time DESC").Order("id DESC")
	if f.AccountNumber != 0 {
		query = query.Where("account_number = ?", f.AccountNumber)
	}
	if !f.Since.IsZero() {
		query = query.Where("snapshot_time >= ?", f.Since)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
