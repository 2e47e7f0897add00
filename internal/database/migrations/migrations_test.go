package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/account"
	"github.com/mohdghattas/mt4-online-server/internal/history"
	"github.com/mohdghattas/mt4-online-server/internal/settings"
	"github.com/mohdghattas/mt4-online-server/internal/testutil"
)

func TestRunAppliesEverythingOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	pending, err := Pending(ctx, db)
	require.NoError(t, err)
	assert.Len(t, pending, len(All()))

	applied, err := Run(ctx, db)
	require.NoError(t, err)
	assert.Len(t, applied, len(All()))

	m := db.Migrator()
	assert.True(t, m.HasTable(&account.Snapshot{}))
	assert.True(t, m.HasTable(&history.Entry{}))
	assert.True(t, m.HasTable(&settings.Setting{}))
	assert.True(t, m.HasIndex(&history.Entry{}, "idx_history_account_time"))
	assert.True(t, m.HasIndex(&account.Snapshot{}, "idx_accounts_updated_at"))

	pending, err = Pending(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied, err = Run(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)

	rows, err := Applied(ctx, db)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "create_accounts", rows[0].Name)
}

func TestVersionsAreOrderedAndUnique(t *testing.T) {
	seen := map[int]bool{}
	prev := 0
	for _, m := range All() {
		assert.False(t, seen[m.Version], "duplicate version %d", m.Version)
		assert.Greater(t, m.Version, prev)
		seen[m.Version] = true
		prev = m.Version
	}
}

type scratch struct {
	ID uint
}

func TestFailedMigrationRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	set := []Migration{
		{Version: 1, Name: "ok", Up: func(tx *gorm.DB) error { return nil }},
		{Version: 2, Name: "broken", Up: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&scratch{}); err != nil {
				return err
			}
			return errors.New("boom")
		}},
	}

	applied, err := run(ctx, db, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_broken")
	assert.Len(t, applied, 1)
	assert.False(t, db.Migrator().HasTable(&scratch{}))

	left, err := pending(ctx, db, set)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, 2, left[0].Version)
}
