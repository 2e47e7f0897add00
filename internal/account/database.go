package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertSnapshots stores every snapshot in one transaction, one
// INSERT ... ON CONFLICT (account_number) DO UPDATE per snapshot. When the
// same account appears twice the later snapshot wins.
func (d *Database) UpsertSnapshots(ctx context.Context, snaps []Snapshot) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range snaps {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_number"}},
				UpdateAll: true,
			}).Create(&snaps[i]).Error
			if err != nil {
				return fmt.Errorf("failed to upsert account %d: %w", snaps[i].AccountNumber, err)
			}
		}
		return nil
	})
}

func (d *Database) GetSnapshot(ctx context.Context, accountNumber int64) (*Snapshot, error) {
	var snap Snapshot
	if err := d.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns all accounts ordered by column. Ties fall back to
// account number.
func (d *Database) ListSnapshots(ctx context.Context, column string, desc bool) ([]Snapshot, error) {
	query := d.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	if column != "account_number" {
		query = query.Order("account_number")
	}

	var snaps []Snapshot
	if err := query.Find(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}

// DeleteStale removes accounts whose last report is older than before and
// returns the removed account numbers.
func (d *Database) DeleteStale(ctx context.Context, before time.Time) ([]int64, error) {
	var removed []int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Snapshot{}).Where("updated_at < ?", before).Pluck("account_number", &removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return tx.Where("account_number IN ?", removed).Delete(&Snapshot{}).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// BrokerSummaries groups accounts by broker. realizedColumn must come from
// the realized P/L allow-list.
func (d *Database) BrokerSummaries(ctx context.Context, realizedColumn string) ([]BrokerSummary, error) {
	var rows []BrokerSummary
	err := d.db.WithContext(ctx).Model(&Snapshot{}).
		Select("broker, COUNT(*) AS accounts, " +
			"COALESCE(SUM(balance), 0) AS total_balance, " +
			"COALESCE(SUM(equity), 0) AS total_equity, " +
			"COALESCE(SUM(profit_loss), 0) AS total_profit_loss, " +
			"COALESCE(SUM(" + realizedColumn + "), 0) AS total_realized_pl").
		Group("broker").
		Order("broker").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate brokers: %w", err)
	}
	return rows, nil
}

// TopAccounts returns the limit best accounts by column.
func (d *Database) TopAccounts(ctx context.Context, column string, limit int) ([]Snapshot, error) {
	var snaps []Snapshot
	err := d.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}).
		Order("account_number").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top accounts: %w", err)
	}
	return snaps, nil
}

// MarginHealth counts accounts per margin band. Accounts without used margin
// are idle.
func (d *Database) MarginHealth(ctx context.Context, critical, warning float64) ([]MarginBucket, error) {
	var rows []MarginBucket
	err := d.db.WithContext(ctx).Model(&Snapshot{}).
		Select("CASE WHEN margin_used = 0 THEN 'idle' "+
			"WHEN margin_percent < ? THEN 'critical' "+
			"WHEN margin_percent < ? THEN 'warning' "+
			"ELSE 'healthy' END AS bucket, COUNT(*) AS accounts", critical, warning).
		Group("bucket").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count margin buckets: %w", err)
	}
	return rows, nil
}
