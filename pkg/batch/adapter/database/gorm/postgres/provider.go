// Package postgres registers the PostgreSQL dialect with the gorm adapter.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialect("postgres", gormadapter.Dialect{
		Open: func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
			return postgres.Open(ConnectionString(cfg)), nil
		},
		Classifier: Classifier{},
	})
}

// ConnectionString builds the key/value DSN expected by pgx.
func ConnectionString(c config.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

// Classifier inspects pgconn errors by SQLSTATE.
type Classifier struct{}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConnectionError reports class 08 errors and failed dials.
func (Classifier) IsConnectionError(err error) bool {
	if strings.HasPrefix(pgCode(err), "08") {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// IsConstraintViolation reports class 23 errors.
func (Classifier) IsConstraintViolation(err error) bool {
	return strings.HasPrefix(pgCode(err), "23")
}

// IsTableNotExistError reports undefined_table.
func (Classifier) IsTableNotExistError(err error) bool {
	return pgCode(err) == "42P01"
}
