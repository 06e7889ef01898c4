// Package sqlite registers the SQLite dialect with the gorm adapter.
package sqlite

import (
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialect("sqlite", gormadapter.Dialect{
		Open: func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
			dsn, err := ConnectionString(cfg)
			if err != nil {
				return nil, err
			}
			return sqlite.Open(dsn), nil
		},
		Classifier: Classifier{},
		TunePool:   TunePool,
	})
}

// ConnectionString returns the database file path with a busy timeout
// unless the path already carries query parameters.
func ConnectionString(c config.DatabaseConfig) (string, error) {
	path := c.Path
	if path == "" {
		path = c.Database
	}
	if path == "" {
		return "", errors.New("SQLite database path cannot be empty")
	}
	if strings.Contains(path, "?") {
		return path, nil
	}
	return path + "?_busy_timeout=5000", nil
}

// TunePool pins SQLite to a single connection that never expires, so
// in-memory databases survive and writers never contend.
func TunePool(p config.PoolConfig) config.PoolConfig {
	p.MaxOpenConns = 1
	p.MaxIdleConns = 1
	p.ConnMaxLifetimeMinutes = 0
	return p
}

// Classifier inspects mattn/go-sqlite3 result codes.
type Classifier struct{}

func sqliteCode(err error) (sqlite3.ErrNo, bool) {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code, true
	}
	return 0, false
}

// IsConnectionError reports errors opening or reading the database file.
func (Classifier) IsConnectionError(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	return code == sqlite3.ErrCantOpen || code == sqlite3.ErrIoErr || code == sqlite3.ErrNotADB
}

// IsConstraintViolation reports SQLITE_CONSTRAINT.
func (Classifier) IsConstraintViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.ErrConstraint
}

// IsTableNotExistError reports "no such table" failures.
func (Classifier) IsTableNotExistError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
