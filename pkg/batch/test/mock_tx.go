package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

// MockTx is a testify mock of tx.Tx.
type MockTx struct {
	mock.Mock
}

var _ tx.Tx = (*MockTx)(nil)

func (m *MockTx) ExecuteQuery(ctx context.Context, target interface{}, q tx.Query) error {
	args := m.Called(ctx, target, q)
	return args.Error(0)
}

func (m *MockTx) ExecuteInsert(ctx context.Context, model interface{}) (int64, error) {
	args := m.Called(ctx, model)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ExecuteUpdate(ctx context.Context, model interface{}, where map[string]interface{}, values map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, where, values)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ExecuteUpsert(ctx context.Context, model interface{}, conflictColumns []string, updateColumns []string) (int64, error) {
	args := m.Called(ctx, model, conflictColumns, updateColumns)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) Savepoint(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockTx) RollbackToSavepoint(name string) error {
	return m.Called(name).Error(0)
}

// MockTxManager is a testify mock of tx.TransactionManager.
type MockTxManager struct {
	mock.Mock
}

var _ tx.TransactionManager = (*MockTxManager)(nil)

// Begin returns the mocked Tx, or the mocked error when the first value is nil.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

func (m *MockTxManager) Commit(t tx.Tx) error {
	return m.Called(t).Error(0)
}

func (m *MockTxManager) Rollback(t tx.Tx) error {
	return m.Called(t).Error(0)
}
