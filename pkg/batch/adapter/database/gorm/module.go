package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

// ConnectionName is the name of the single application connection.
const ConnectionName = "arbovirus"

// NewConnection opens the configured database and closes it on shutdown.
func NewConnection(lc fx.Lifecycle, cfg *config.Config) (*GormDBAdapter, error) {
	conn, err := Open(cfg.Arbo.Database, ConnectionName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return conn.Close() },
	})
	return conn, nil
}

// Module provides the connection and its transaction manager.
// A dialect package (postgres, mysql, sqlite) must be imported for its type to resolve.
var Module = fx.Options(
	fx.Provide(NewConnection),
	fx.Provide(func(c *GormDBAdapter) database.DBConnection { return c }),
	fx.Provide(NewGormTransactionManager),
)
