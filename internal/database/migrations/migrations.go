// Package migrations holds the versioned schema changes. Each migration runs
// once, in version order, inside its own transaction.
package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Migration is one schema change
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// SchemaMigration records an applied migration
type SchemaMigration struct {
	Version   int       `gorm:"column:version;primaryKey;autoIncrement:false"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	AppliedAt time.Time `gorm:"column:applied_at;not null"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

var registry = []Migration{
	{Version: 1, Name: "create_accounts", Up: CreateAccounts},
	{Version: 2, Name: "create_history", Up: CreateHistory},
	{Version: 3, Name: "create_settings", Up: CreateSettings},
}

// All returns every known migration in version order
func All() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	return out
}

// Applied returns the recorded migrations
func Applied(ctx context.Context, db *gorm.DB) ([]SchemaMigration, error) {
	if err := db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}
	var rows []SchemaMigration
	if err := db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Pending returns the migrations not applied yet
func Pending(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	return pending(ctx, db, registry)
}

// Run applies every pending migration and returns the ones it applied
func Run(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	return run(ctx, db, registry)
}

func pending(ctx context.Context, db *gorm.DB, set []Migration) ([]Migration, error) {
	applied, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	var out []Migration
	for _, m := range set {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out, nil
}

func run(ctx context.Context, db *gorm.DB, set []Migration) ([]Migration, error) {
	todo, err := pending(ctx, db, set)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, m := range todo {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration %03d_%s failed: %w", m.Version, m.Name, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
		applied = append(applied, m)
	}
	return applied, nil
}
