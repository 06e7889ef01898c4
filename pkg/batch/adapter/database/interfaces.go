// Package database defines the relational store connection used by the repositories.
package database

import (
	"context"
	"database/sql"

	coreAdapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/adapter"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

// ErrorClassifier maps driver errors onto the categories the pipeline reacts to.
type ErrorClassifier interface {
	// IsConnectionError reports whether err means the store is unreachable.
	IsConnectionError(err error) bool
	// IsConstraintViolation reports whether err is a unique, foreign key or not-null violation.
	IsConstraintViolation(err error) bool
	// IsTableNotExistError reports whether err is caused by a missing table.
	IsTableNotExistError(err error) bool
}

// DBConnection is a connection to the relational store.
type DBConnection interface {
	coreAdapter.ResourceConnection
	tx.TxExecutor
	ErrorClassifier

	// RefreshConnection pings the store.
	RefreshConnection(ctx context.Context) error
	// GetSQLDB returns the underlying *sql.DB, e.g. for migrations.
	GetSQLDB() (*sql.DB, error)
}
