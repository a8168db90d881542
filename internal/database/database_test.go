package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordshift/internal/registry"
)

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}
	assert.Equal(t, "SELECT 1", d.rebind("SELECT 1"))
	assert.Equal(t,
		"SELECT id FROM orders WHERE id = $1 AND status = $2",
		d.rebind("SELECT id FROM orders WHERE id = ? AND status = ?"))
	assert.Equal(t,
		"SELECT '?' FROM orders WHERE id = $1",
		d.rebind("SELECT '?' FROM orders WHERE id = ?"))
}

func TestValidIdentifier(t *testing.T) {
	assert.NoError(t, ValidIdentifier("orders"))
	assert.NoError(t, ValidIdentifier("_tmp_refunds2"))
	assert.Error(t, ValidIdentifier(""))
	assert.Error(t, ValidIdentifier("orders; DROP TABLE records"))
	assert.Error(t, ValidIdentifier("2orders"))
}

func TestNewFromDBRejectsUnknownDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewFromDB(db, "oracle", zerolog.Nop())
	assert.Error(t, err)
}

func TestPostgresQueryIsRebound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	pg, err := NewFromDB(db, "postgres", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Dialect())

	mock.ExpectQuery("SELECT id FROM orders WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	rows, err := pg.Query(context.Background(), "SELECT id FROM orders WHERE id = ?", int64(7))
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, cols)
	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionExecCommits(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	sqlDB, err := NewFromDB(db, "mysql", zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM orders WHERE id = ?").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := sqlDB.BeginTx(ctx)
	require.NoError(t, err)
	res, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = ?", int64(3))
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClosedDatabaseRejectsQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	sqlDB, err := NewFromDB(db, "mysql", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	require.NoError(t, sqlDB.Close())

	_, err = sqlDB.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestSQLiteSchemaIntrospection(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLiteDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount DECIMAL(26,8),
		date_created_gmt DATETIME
	)`)
	require.NoError(t, err)

	schema, err := db.GetSchema(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "id", schema.PrimaryKey)
	assert.Equal(t, []string{"id", "status", "total_amount", "date_created_gmt"}, schema.ColumnNames())

	status, ok := schema.Column("status")
	require.True(t, ok)
	assert.False(t, status.Nullable)
	assert.Equal(t, "'pending'", status.Default)

	tables, err := db.GetTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)

	_, err = db.GetSchema(ctx, "missing")
	assert.Error(t, err)
	_, err = db.GetSchema(ctx, "orders;--")
	assert.Error(t, err)
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := New(registry.InternalDatabaseConfig{Type: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestFactoryOpensSQLite(t *testing.T) {
	db, err := New(registry.InternalDatabaseConfig{Type: "sqlite", Path: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite", db.Dialect())
}
