package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
)

// dialect captures what differs between the supported databases.
type dialect interface {
	name() string
	rebind(query string) string
	getSchema(ctx context.Context, db *sql.DB, tableName string) (*core.Schema, error)
	getTables(ctx context.Context, db *sql.DB) ([]string, error)
}

// PoolConfig contains connection pool settings.
type PoolConfig struct {
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

// SQLDatabase implements the core.Database interface on top of database/sql.
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
	log     zerolog.Logger
	closed  bool
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier rejects table or column names that cannot be safely
// interpolated into SQL.
func ValidIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier %q", name)
	}
	return nil
}

func open(driverName, dsn string, pool PoolConfig, d dialect, log zerolog.Logger) (*SQLDatabase, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	timeout := pool.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLDatabase{
		db:      db,
		dialect: d,
		log:     logger.Component(log, d.name()),
	}, nil
}

// NewFromDB wraps an already opened connection.
func NewFromDB(db *sql.DB, dialectName string, log zerolog.Logger) (*SQLDatabase, error) {
	d, ok := dialects[dialectName]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dialectName)
	}
	return &SQLDatabase{
		db:      db,
		dialect: d,
		log:     logger.Component(log, d.name()),
	}, nil
}

// Dialect returns the dialect name.
func (s *SQLDatabase) Dialect() string {
	return s.dialect.name()
}

// DB returns the underlying connection pool.
func (s *SQLDatabase) DB() *sql.DB {
	return s.db
}

// Query executes a SELECT query and returns rows.
func (s *SQLDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	query = s.dialect.rebind(query)
	s.log.Debug().Str("query", query).Interface("args", args).Msg("executing query")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("query failed")
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (s *SQLDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	query = s.dialect.rebind(query)
	s.log.Debug().Str("query", query).Interface("args", args).Msg("executing statement")
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("statement failed")
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}

// BeginTx starts a new transaction.
func (s *SQLDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx, dialect: s.dialect}, nil
}

// GetSchema retrieves the schema information for a specific table.
func (s *SQLDatabase) GetSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	if err := ValidIdentifier(tableName); err != nil {
		return nil, err
	}
	schema, err := s.dialect.getSchema(ctx, s.db, tableName)
	if err != nil {
		return nil, err
	}
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist or has no columns", tableName)
	}
	if schema.PrimaryKey == "" {
		return nil, fmt.Errorf("table %s does not have a primary key", tableName)
	}
	return schema, nil
}

// GetTables returns a list of all table names in the database.
func (s *SQLDatabase) GetTables(ctx context.Context) ([]string, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	return s.dialect.getTables(ctx, s.db)
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlResult wraps sql.Result to implement core.Result.
type sqlResult struct {
	result sql.Result
}

func (r *sqlResult) LastInsertId() (int64, error) {
	return r.result.LastInsertId()
}

func (r *sqlResult) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	result, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &sqlResult{result: result}, nil
}
