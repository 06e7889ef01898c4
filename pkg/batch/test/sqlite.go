// Package test holds helpers shared by package tests: a migrated in-memory
// SQLite connection, testify mocks of the transaction ports and fixtures.
package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/resources"
)

// OpenSQLite opens a private in-memory SQLite database with every migration
// applied. The connection is closed when the test ends.
func OpenSQLite(t testing.TB) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migration.NewMigrator(conn).Up(context.Background(), resources.Migrations()))
	return conn
}
