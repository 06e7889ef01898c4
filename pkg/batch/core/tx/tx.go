// Package tx abstracts transaction management so that repositories can run the
// same operations inside or outside a transaction without depending on the ORM.
package tx

import (
	"context"
	"database/sql"
)

// Range restricts Column to the inclusive interval [From, To].
// A nil bound leaves that side open.
type Range struct {
	Column string
	From   interface{}
	To     interface{}
}

// Query describes a filtered, ordered read.
type Query struct {
	// Where holds equality conditions combined with AND. Slice values become IN lists.
	Where map[string]interface{}
	// Ranges holds inclusive range conditions combined with AND.
	Ranges []Range
	// OrderBy is a raw ORDER BY expression, e.g. "date ASC".
	OrderBy string
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// TxExecutor defines the data operations available both on a plain connection
// and inside a transaction. Target tables are resolved from the model's TableName.
type TxExecutor interface {
	// ExecuteQuery loads the rows matching q into target (a pointer to a slice).
	ExecuteQuery(ctx context.Context, target interface{}, q Query) error

	// ExecuteInsert inserts model (a struct pointer or slice pointer).
	ExecuteInsert(ctx context.Context, model interface{}) (rowsAffected int64, err error)

	// ExecuteUpdate sets values on the rows of model's table matching where.
	// Callers use the returned row count for optimistic checks.
	ExecuteUpdate(ctx context.Context, model interface{}, where map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model and, on conflict over conflictColumns, updates
	// updateColumns. An empty updateColumns turns the conflict into DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint within the transaction.
	Savepoint(name string) error
	// RollbackToSavepoint undoes the work done after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of transactions.
type TransactionManager interface {
	// Begin starts a new transaction bound to ctx. Cancelling ctx rolls it back.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit persists every change made in t.
	Commit(t Tx) error
	// Rollback undoes every change made in t.
	Rollback(t Tx) error
}
