package gorm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/tx"
)

type reading struct {
	ID           uint      `gorm:"primaryKey"`
	LocationCode string    `gorm:"uniqueIndex:idx_reading_key"`
	Date         time.Time `gorm:"uniqueIndex:idx_reading_key"`
	Value        float64
}

func (reading) TableName() string { return "readings" }

func openSQLite(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.GetGormDB().AutoMigrate(&reading{}))
	return conn
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := gormadapter.Open(config.DatabaseConfig{Type: "oracle"}, "test")
	assert.Error(t, err)
}

func TestOpen_SQLitePinnedToSingleConnection(t *testing.T) {
	conn := openSQLite(t)
	sqlDB, err := conn.GetSQLDB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, conn.RefreshConnection(context.Background()))
	assert.Equal(t, "sqlite", conn.Type())
	assert.Equal(t, "test", conn.Name())
}

func TestExecuteUpsert_UpdatesOnConflict(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)

	rows := []reading{
		{LocationCode: "3550308", Date: day(1), Value: 1},
		{LocationCode: "3550308", Date: day(2), Value: 2},
	}
	n, err := conn.ExecuteUpsert(ctx, &rows, []string{"location_code", "date"}, []string{"value"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	again := []reading{{LocationCode: "3550308", Date: day(2), Value: 20}}
	_, err = conn.ExecuteUpsert(ctx, &again, []string{"location_code", "date"}, []string{"value"})
	require.NoError(t, err)

	var got []reading
	require.NoError(t, conn.ExecuteQuery(ctx, &got, tx.Query{
		Where:   map[string]interface{}{"location_code": "3550308"},
		OrderBy: "date",
	}))
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Value)
	assert.Equal(t, 20.0, got[1].Value)
}

func TestExecuteQuery_Ranges(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	rows := []reading{
		{LocationCode: "A", Date: day(1)},
		{LocationCode: "A", Date: day(5)},
		{LocationCode: "A", Date: day(9)},
	}
	_, err := conn.ExecuteInsert(ctx, &rows)
	require.NoError(t, err)

	from, to := day(2), day(9)
	var got []reading
	require.NoError(t, conn.ExecuteQuery(ctx, &got, tx.Query{
		Ranges: []tx.Range{{Column: "date", From: from, To: to}},
		OrderBy: "date desc",
		Limit:   1,
	}))
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.Equal(day(9)))
}

func TestExecuteUpdate_RequiresWhere(t *testing.T) {
	conn := openSQLite(t)
	_, err := conn.ExecuteUpdate(context.Background(), &reading{}, nil, map[string]interface{}{"value": 1})
	assert.Error(t, err)
}

func TestTransactionManager_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	tm := gormadapter.NewGormTransactionManager(conn)

	txn, err := tm.Begin(ctx)
	require.NoError(t, err)
	_, err = txn.ExecuteInsert(ctx, &reading{LocationCode: "B", Date: day(3)})
	require.NoError(t, err)
	require.NoError(t, tm.Rollback(txn))

	var got []reading
	require.NoError(t, conn.ExecuteQuery(ctx, &got, tx.Query{Where: map[string]interface{}{"location_code": "B"}}))
	assert.Empty(t, got)
}

func TestTransactionManager_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	_, err := conn.ExecuteInsert(ctx, &reading{LocationCode: "C", Date: day(1)})
	require.NoError(t, err)

	_, err = conn.ExecuteInsert(ctx, &reading{LocationCode: "C", Date: day(1)})
	require.Error(t, err)
	assert.True(t, conn.IsConstraintViolation(err))
	assert.False(t, conn.IsConnectionError(err))
}

func TestTransactionManager_CommitWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Discard, SkipDefaultTransaction: true})
	require.NoError(t, err)
	conn := gormadapter.NewGormDBAdapter(gdb, "mysql", "mock", nil)
	tm := gormadapter.NewGormTransactionManager(conn)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `readings` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := tm.Begin(context.Background())
	require.NoError(t, err)
	n, err := txn.ExecuteUpdate(context.Background(), &reading{}, map[string]interface{}{"id": 1}, map[string]interface{}{"value": 3.5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tm.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_BeginFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	tm := gormadapter.NewGormTransactionManager(gormadapter.NewGormDBAdapter(gdb, "mysql", "mock", nil))

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
	_, err = tm.Begin(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
