package core

import (
	"context"
)

// Database defines the operations required from the relational database.
type Database interface {
	// Dialect returns the SQL dialect name ("mysql", "postgres", "sqlite").
	Dialect() string

	// Query executes a SELECT query and returns rows.
	// Placeholders are always written as "?"; implementations rebind them.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a non-query statement.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// GetSchema returns the column contract of a table.
	GetSchema(ctx context.Context, tableName string) (*Schema, error)

	// GetTables returns every base table name.
	GetTables(ctx context.Context) ([]string, error)

	// Close closes the database connection.
	Close() error
}

// Rows is a cursor over query results.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Transaction is a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}
