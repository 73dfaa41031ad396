package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragcache/internal/config"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(config.DatabaseConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=ragcache sslmode=disable",
		DSN(config.DatabaseConfig{Host: "db", User: "u", Password: "p", DBName: "ragcache"}))
	assert.Equal(t,
		"host=db port=6543 user=u password=p dbname=r sslmode=require",
		DSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "r", SSLMode: "require"}))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id INT);\n\n  ;\nCREATE INDEX i ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestMigrationFiles_Sorted(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_embedding_cache.sql", files[0])
}
