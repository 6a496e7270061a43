// Package dbtest opens throwaway in-memory SQLite databases behind the
// same database.DB wrapper the services use.
package dbtest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/stretchr/testify/require"
)

// New returns an empty in-memory database. migrate receives the raw
// connection so callers can run their package's migrations.
func New(t testing.TB, migrate ...func(db *database.DB) error) *database.DB {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.LogLevel = "silent"
	cfg.PrepareStmt = false
	// A single connection keeps every query on the same :memory: database.
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ConnMaxLifetime = 0
	cfg.ConnMaxIdleTime = 0

	db, err := database.Open(sqlite.Open(":memory:"), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, m := range migrate {
		require.NoError(t, m(db))
	}
	return db
}
