// Package gorm implements the database connection and transaction manager on gorm.
package gorm

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db         *gorm.DB
	dbType     string
	name       string
	classifier database.ErrorClassifier
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps db. A nil classifier only recognises driver-agnostic errors.
func NewGormDBAdapter(db *gorm.DB, dbType, name string, classifier database.ErrorClassifier) *GormDBAdapter {
	return &GormDBAdapter{db: db, dbType: dbType, name: name, classifier: classifier}
}

// GetGormDB returns the wrapped *gorm.DB.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

// Close closes the underlying *sql.DB.
func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	logger.Debugf("Closing database connection '%s'.", a.name)
	return sqlDB.Close()
}

// Type returns the database type.
func (a *GormDBAdapter) Type() string { return a.dbType }

// Name returns the connection name.
func (a *GormDBAdapter) Name() string { return a.name }

// RefreshConnection pings the database.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetSQLDB returns the underlying *sql.DB.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	return a.db.DB()
}

// IsConnectionError reports whether err means the store is unreachable.
func (a *GormDBAdapter) IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}
	return a.classifier != nil && a.classifier.IsConnectionError(err)
}

// IsConstraintViolation reports whether err is an integrity constraint violation.
func (a *GormDBAdapter) IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return a.classifier != nil && a.classifier.IsConstraintViolation(err)
}

// IsTableNotExistError reports whether err is caused by a missing table.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	return a.classifier != nil && a.classifier.IsTableNotExistError(err)
}

// ExecuteQuery implements tx.TxExecutor.
func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, q tx.Query) error {
	return executeQuery(a.db.WithContext(ctx), target, q)
}

// ExecuteInsert implements tx.TxExecutor.
func (a *GormDBAdapter) ExecuteInsert(ctx context.Context, model interface{}) (int64, error) {
	return executeInsert(a.db.WithContext(ctx), model)
}

// ExecuteUpdate implements tx.TxExecutor.
func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, where map[string]interface{}, values map[string]interface{}) (int64, error) {
	return executeUpdate(a.db.WithContext(ctx), model, where, values)
}

// ExecuteUpsert implements tx.TxExecutor.
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, conflictColumns []string, updateColumns []string) (int64, error) {
	return executeUpsert(a.db.WithContext(ctx), model, conflictColumns, updateColumns)
}

func executeQuery(db *gorm.DB, target interface{}, q tx.Query) error {
	if len(q.Where) > 0 {
		db = db.Where(q.Where)
	}
	for _, r := range q.Ranges {
		if r.From != nil {
			db = db.Where(clause.Gte{Column: clause.Column{Name: r.Column}, Value: r.From})
		}
		if r.To != nil {
			db = db.Where(clause.Lte{Column: clause.Column{Name: r.Column}, Value: r.To})
		}
	}
	if q.OrderBy != "" {
		db = db.Order(q.OrderBy)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db.Find(target).Error
}

func executeInsert(db *gorm.DB, model interface{}) (int64, error) {
	res := db.Create(model)
	return res.RowsAffected, res.Error
}

func executeUpdate(db *gorm.DB, model interface{}, where map[string]interface{}, values map[string]interface{}) (int64, error) {
	if len(where) == 0 {
		return 0, errors.New("refusing to update without a where clause")
	}
	res := db.Model(model).Where(where).Updates(values)
	return res.RowsAffected, res.Error
}

func executeUpsert(db *gorm.DB, model interface{}, conflictColumns []string, updateColumns []string) (int64, error) {
	cols := make([]clause.Column, len(conflictColumns))
	for i, c := range conflictColumns {
		cols[i] = clause.Column{Name: c}
	}
	onConflict := clause.OnConflict{Columns: cols}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}
	res := db.Clauses(onConflict).Create(model)
	return res.RowsAffected, res.Error
}
