package settings

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Setting is one dashboard preference.
type Setting struct {
	Key       string                     `gorm:"column:key;primaryKey;type:varchar(120)" json:"key"`
	Value     datatypes.JSONType[Stored] `gorm:"column:value;not null" json:"value"`
	UpdatedAt time.Time                  `gorm:"column:updated_at" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Stored wraps the user's value in an object. SQLite gives JSON columns
// numeric affinity, so a bare 5 or true would come back as an integer.
type Stored struct {
	Value json.RawMessage `json:"v"`
}
