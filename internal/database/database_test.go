package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohdghattas/mt4-online-server/internal/config"
)

func TestDialector(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/mt4": "postgres",
		"postgresql://u:p@localhost/mt4":    "postgres",
		"host=localhost user=u dbname=mt4":  "postgres",
		"sqlite:/var/lib/mt4/data.sqlite":   "sqlite",
		"file::memory:":                     "sqlite",
		"/tmp/mt4.db":                       "sqlite",
	}
	for dsn, want := range cases {
		d, err := Dialector(dsn)
		require.NoError(t, err, dsn)
		assert.Equal(t, want, d.Name(), dsn)
	}

	_, err := Dialector("mysql://root@localhost/mt4")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
	_, err = Dialector("")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
}

func TestEnsureSchema(t *testing.T) {
	db, err := NewDatabase(config.DBConfig{DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	ctx := context.Background()

	err = EnsureSchema(ctx, db, false)
	assert.ErrorIs(t, err, ErrPendingMigrations)
	assert.Contains(t, err.Error(), "001_create_accounts")

	require.NoError(t, EnsureSchema(ctx, db, true))
	require.NoError(t, EnsureSchema(ctx, db, false))
	assert.NoError(t, Ping(ctx, db))
}
