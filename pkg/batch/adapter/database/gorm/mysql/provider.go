// Package mysql registers the MySQL dialect with the gorm adapter.
package mysql

import (
	"errors"
	"fmt"

	drv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialect("mysql", gormadapter.Dialect{
		Open: func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
			return mysql.Open(ConnectionString(cfg)), nil
		},
		Classifier: Classifier{},
	})
}

// ConnectionString builds a go-sql-driver DSN. Times are parsed as UTC and
// multi-statement migration files are allowed.
func ConnectionString(c config.DatabaseConfig) string {
	dsn := drv.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	dsn.MultiStatements = true
	return dsn.FormatDSN()
}

// Classifier inspects go-sql-driver errors by server error number.
type Classifier struct{}

func mysqlNumber(err error) uint16 {
	var myErr *drv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

// IsConnectionError reports invalid connections and lost server links.
func (Classifier) IsConnectionError(err error) bool {
	if errors.Is(err, drv.ErrInvalidConn) {
		return true
	}
	switch mysqlNumber(err) {
	case 2002, 2003, 2006, 2013:
		return true
	}
	return false
}

// IsConstraintViolation reports duplicate keys, foreign key and not-null failures.
func (Classifier) IsConstraintViolation(err error) bool {
	switch mysqlNumber(err) {
	case 1062, 1451, 1452, 1048:
		return true
	}
	return false
}

// IsTableNotExistError reports ER_NO_SUCH_TABLE.
func (Classifier) IsTableNotExistError(err error) bool {
	return mysqlNumber(err) == 1146
}
