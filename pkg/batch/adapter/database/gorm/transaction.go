package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// GormTxAdapter implements tx.Tx over a gorm transaction.
type GormTxAdapter struct {
	tx *gorm.DB
}

var _ tx.Tx = (*GormTxAdapter)(nil)

// ExecuteQuery implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteQuery(ctx context.Context, target interface{}, q tx.Query) error {
	return executeQuery(t.tx.WithContext(ctx), target, q)
}

// ExecuteInsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteInsert(ctx context.Context, model interface{}) (int64, error) {
	return executeInsert(t.tx.WithContext(ctx), model)
}

// ExecuteUpdate implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, where map[string]interface{}, values map[string]interface{}) (int64, error) {
	return executeUpdate(t.tx.WithContext(ctx), model, where, values)
}

// ExecuteUpsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, conflictColumns []string, updateColumns []string) (int64, error) {
	return executeUpsert(t.tx.WithContext(ctx), model, conflictColumns, updateColumns)
}

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.tx.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.tx.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager for one connection.
type GormTransactionManager struct {
	conn *GormDBAdapter
}

// NewGormTransactionManager creates a transaction manager for conn.
func NewGormTransactionManager(conn *GormDBAdapter) tx.TransactionManager {
	return &GormTransactionManager{conn: conn}
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	gtx := m.conn.db.WithContext(ctx).Begin(txOpts)
	if gtx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.conn.name, gtx.Error)
	}
	logger.Debugf("Transaction started on '%s'.", m.conn.name)
	return &GormTxAdapter{tx: gtx}, nil
}

// Commit implements tx.TransactionManager.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gt, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("unexpected transaction type %T", t)
	}
	return gt.tx.Commit().Error
}

// Rollback implements tx.TransactionManager.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gt, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("unexpected transaction type %T", t)
	}
	err := gt.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
