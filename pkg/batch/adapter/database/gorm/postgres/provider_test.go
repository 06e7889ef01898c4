package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func TestConnectionString(t *testing.T) {
	dsn := ConnectionString(config.DatabaseConfig{Host: "db", Port: 5432, User: "arbo", Password: "pw", Database: "arbo"})
	assert.Equal(t, "host=db port=5432 user=arbo password=pw dbname=arbo sslmode=disable", dsn)
}

func TestClassifier(t *testing.T) {
	c := Classifier{}
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, c.IsConstraintViolation(unique))
	assert.False(t, c.IsConnectionError(unique))
	assert.True(t, c.IsConnectionError(&pgconn.PgError{Code: "08006"}))
	assert.True(t, c.IsTableNotExistError(&pgconn.PgError{Code: "42P01"}))
}
