package sqlite

import (
	"errors"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func TestConnectionString(t *testing.T) {
	dsn, err := ConnectionString(config.DatabaseConfig{Path: "arbo.db"})
	assert.NoError(t, err)
	assert.Equal(t, "arbo.db?_busy_timeout=5000", dsn)

	dsn, err = ConnectionString(config.DatabaseConfig{Path: "file::memory:?cache=shared"})
	assert.NoError(t, err)
	assert.Equal(t, "file::memory:?cache=shared", dsn)

	_, err = ConnectionString(config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestTunePool(t *testing.T) {
	p := TunePool(config.PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetimeMinutes: 30})
	assert.Equal(t, config.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, p)
}

func TestClassifier(t *testing.T) {
	c := Classifier{}
	assert.True(t, c.IsConstraintViolation(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.True(t, c.IsConnectionError(sqlite3.Error{Code: sqlite3.ErrCantOpen}))
	assert.False(t, c.IsConnectionError(errors.New("boom")))
	assert.True(t, c.IsTableNotExistError(errors.New("no such table: climate_records")))
}
