package history

import (
	"time"

	"github.com/mohdghattas/mt4-online-server/internal/account"
)

// Entry is one captured copy of an account row. Entries are never updated.
type Entry struct {
	ID              uint   `gorm:"column:id;primaryKey" json:"id"`
	AccountNumber   int64  `gorm:"column:account_number;not null;index" json:"account_number"`
	Broker          string `gorm:"column:broker;type:varchar(255);not null" json:"broker"`
	account.Metrics `gorm:"embedded"`
	SnapshotTime    time.Time `gorm:"column:snapshot_time;not null;index" json:"snapshot_time"`
	BatchID         string    `gorm:"column:batch_id;type:varchar(36);not null;index" json:"batch_id"`
}

func (Entry) TableName() string {
	return "history"
}

// Filter narrows a history listing. Zero values mean no restriction.
type Filter struct {
	AccountNumber int64
	Since         time.Time
	Limit         int
}

// CaptureResult reports one capture run
type CaptureResult struct {
	Captured int    `json:"captured"`
	BatchID  string `json:"batch_id"`
}
