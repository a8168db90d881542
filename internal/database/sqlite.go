package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

const driverSqlite = "sqlite"

type sqliteDialect struct{}

// NewSQLiteDatabase opens a SQLite database file, or an in-memory database
// for ":memory:". SQLite serializes writers, so the pool is pinned to one
// connection.
func NewSQLiteDatabase(path string, log zerolog.Logger) (*SQLDatabase, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return open(driverSqlite, path, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, sqliteDialect{}, log)
}

func (sqliteDialect) name() string {
	return "sqlite"
}

func (sqliteDialect) rebind(query string) string {
	return query
}

func (sqliteDialect) getSchema(ctx context.Context, db *sql.DB, tableName string) (*core.Schema, error) {
	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
		Indexes:   []core.Index{},
	}

	// PRAGMA arguments cannot be bound; tableName is validated by the caller.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		column := core.Column{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0 && primaryKey == 0,
		}
		if dfltValue.Valid {
			column.Default = dfltValue.String
		}
		if primaryKey == 1 {
			schema.PrimaryKey = name
		}
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return schema, nil
}

func (sqliteDialect) getTables(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	return scanNames(ctx, db, query)
}
