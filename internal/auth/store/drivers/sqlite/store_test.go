package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/sok/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, now func() time.Time) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	s.SetClock(now)
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestMigrations(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") + "?_pragma=foreign_keys(1)"
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	v, dirty, err := s.MigrationVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.EqualValues(t, 2, v)

	// re-applying is a no-op
	require.NoError(t, s.ApplyMigrations())

	require.NoError(t, s.RollbackMigrations(1))
	v, _, err = s.MigrationVersion()
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	require.NoError(t, s.ApplyMigrations())
	v, _, err = s.MigrationVersion()
	require.NoError(t, err)
	require.EqualValues(t, 2, v)
}
