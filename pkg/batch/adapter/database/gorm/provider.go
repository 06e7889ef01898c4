package gorm

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

// PoolTuner adjusts pool settings a dialect cannot live with (e.g. SQLite writers).
type PoolTuner func(cfg config.PoolConfig) config.PoolConfig

// Dialect bundles everything a database type contributes.
type Dialect struct {
	Open       DialectorFactory
	Classifier database.ErrorClassifier
	TunePool   PoolTuner
}

var (
	dialectRegistry = make(map[string]Dialect)
	dialectMutex    sync.RWMutex
)

// RegisterDialect registers the Dialect for the given database type.
// Driver packages call it from init.
func RegisterDialect(dbType string, d Dialect) {
	dialectMutex.Lock()
	defer dialectMutex.Unlock()
	if _, exists := dialectRegistry[dbType]; exists {
		logger.Warnf("Dialect for type '%s' already registered. Overwriting.", dbType)
	}
	dialectRegistry[dbType] = d
}

// GetDialect retrieves the Dialect registered for dbType.
func GetDialect(dbType string) (Dialect, error) {
	dialectMutex.RLock()
	defer dialectMutex.RUnlock()
	d, ok := dialectRegistry[dbType]
	if !ok {
		return Dialect{}, fmt.Errorf("no dialect registered for database type: %s", dbType)
	}
	return d, nil
}

// Open establishes a connection for cfg.Type. The store is not pinged here:
// jobs check reachability themselves so an outage is recorded as a failed run.
func Open(cfg config.DatabaseConfig, name string) (*GormDBAdapter, error) {
	d, err := GetDialect(cfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := d.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dialector for '%s': %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               NewGormLogger(cfg.LogLevel),
		NowFunc:              func() time.Time { return time.Now().UTC() },
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection '%s': %w", cfg.Type, name, err)
	}

	pool := cfg.Pool
	if d.TunePool != nil {
		pool = d.TunePool(pool)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", name, err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMinutes) * time.Minute)

	logger.Infof("Database connection '%s' (%s) opened.", name, cfg.Type)
	return NewGormDBAdapter(db, cfg.Type, name, d.Classifier), nil
}
