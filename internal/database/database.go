package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/database/migrations"
)

var ErrUnsupportedDSN = errors.New("unsupported database url")

// ErrPendingMigrations is returned by EnsureSchema when the schema is behind
// and automatic migration is off.
var ErrPendingMigrations = errors.New("database has pending migrations")

// Dialector picks the gorm driver for dsn. Postgres URLs and key=value
// strings use the postgres driver; sqlite:, file: and *.db paths use sqlite.
func Dialector(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.HasPrefix(dsn, "host="):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		return sqlite.Open(dsn), nil
	default:
		return nil, ErrUnsupportedDSN
	}
}

// NewDatabase opens a connection pool sized by cfg
func NewDatabase(cfg config.DBConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// EnsureSchema applies pending migrations when autoMigrate is set and
// otherwise refuses to continue with an outdated schema.
func EnsureSchema(ctx context.Context, db *gorm.DB, autoMigrate bool) error {
	if autoMigrate {
		if _, err := migrations.Run(ctx, db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	}

	pending, err := migrations.Pending(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		names := make([]string, 0, len(pending))
		for _, m := range pending {
			names = append(names, fmt.Sprintf("%03d_%s", m.Version, m.Name))
		}
		log.Error().Strs("pending", names).Msg("schema is out of date; run the migrate command")
		return fmt.Errorf("%w: %s", ErrPendingMigrations, strings.Join(names, ", "))
	}
	return nil
}

// Ping checks that the database answers
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
