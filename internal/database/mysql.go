package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

type mysqlDialect struct{}

// NewMySQLDatabase opens a MySQL connection pool.
func NewMySQLDatabase(host string, port int, database, username, password string, pool PoolConfig, log zerolog.Logger) (*SQLDatabase, error) {
	timeout := pool.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&timeout=%s",
		username, password, host, port, database, timeout)
	return open("mysql", dsn, pool, mysqlDialect{}, log)
}

func (mysqlDialect) name() string {
	return "mysql"
}

func (mysqlDialect) rebind(query string) string {
	return query
}

func (mysqlDialect) getSchema(ctx context.Context, db *sql.DB, tableName string) (*core.Schema, error) {
	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
		Indexes:   []core.Index{},
	}

	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var colName, colType, isNullable, columnKey string
		var colDefault sql.NullString
		if err := rows.Scan(&colName, &colType, &isNullable, &colDefault, &columnKey); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		column := core.Column{
			Name:     colName,
			Type:     colType,
			Nullable: isNullable == "YES",
		}
		if colDefault.Valid {
			column.Default = colDefault.String
		}
		if columnKey == "PRI" {
			schema.PrimaryKey = colName
		}
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	indexQuery := `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
	indexRows, err := db.QueryContext(ctx, indexQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer indexRows.Close()

	indexMap := make(map[string]*core.Index)
	for indexRows.Next() {
		var indexName, columnName string
		var nonUnique int
		if err := indexRows.Scan(&indexName, &columnName, &nonUnique); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		if index, exists := indexMap[indexName]; exists {
			index.Columns = append(index.Columns, columnName)
			continue
		}
		indexMap[indexName] = &core.Index{
			Name:    indexName,
			Columns: []string{columnName},
			Unique:  nonUnique == 0,
			Primary: indexName == "PRIMARY",
		}
	}
	if err := indexRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}

	for _, index := range indexMap {
		schema.Indexes = append(schema.Indexes, *index)
	}
	sort.Slice(schema.Indexes, func(i, j int) bool { return schema.Indexes[i].Name < schema.Indexes[j].Name })

	return schema, nil
}

func (mysqlDialect) getTables(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
	`
	return scanNames(ctx, db, query)
}

// scanNames runs a query returning one string column.
func scanNames(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
