package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragcache/internal/config"
	"github.com/xxxsen/ragcache/internal/db"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// testDatabase reads RAGCACHE_TEST_DSN, or TEST_DB_HOST plus optional TEST_DB_USER,
// TEST_DB_PASSWORD and TEST_DB_NAME. ok is false when neither is set.
func testDatabase() (config.DatabaseConfig, bool) {
	if dsn := os.Getenv("RAGCACHE_TEST_DSN"); dsn != "" {
		return config.DatabaseConfig{DSN: dsn}, true
	}
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return config.DatabaseConfig{}, false
	}
	return config.DatabaseConfig{
		Host:         host,
		User:         envOr("TEST_DB_USER", "ragcache"),
		Password:     envOr("TEST_DB_PASSWORD", "ragcache_pass"),
		DBName:       envOr("TEST_DB_NAME", "ragcache_test"),
		MaxOpenConns: 4,
	}, true
}

// OpenTestDB returns a migrated postgres connection, or skips the test when no
// database is configured. The returned func closes the connection; it is also
// registered with t.Cleanup so calling it is optional.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	cfg, ok := testDatabase()
	if !ok {
		t.Skip("no test postgres configured (RAGCACHE_TEST_DSN or TEST_DB_HOST)")
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err, "open test db")
	require.NoError(t, db.ApplyMigrations(conn), "apply migrations")

	closed := false
	closeFn := func() {
		if closed {
			return
		}
		closed = true
		_ = conn.Close()
	}
	t.Cleanup(closeFn)
	return conn, closeFn
}
