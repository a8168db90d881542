package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

type postgresDialect struct{}

// NewPostgresDatabase opens a PostgreSQL connection pool through pgx.
func NewPostgresDatabase(host string, port int, database, username, password, sslMode string, pool PoolConfig, log zerolog.Logger) (*SQLDatabase, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(username, password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + database,
	}
	q := dsn.Query()
	q.Set("sslmode", sslMode)
	if pool.ConnectionTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(pool.ConnectionTimeout.Seconds())))
	}
	dsn.RawQuery = q.Encode()
	return open("pgx", dsn.String(), pool, postgresDialect{}, log)
}

func (postgresDialect) name() string {
	return "postgres"
}

// rebind rewrites "?" placeholders as $1, $2, ... leaving quoted text alone.
func (postgresDialect) rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (postgresDialect) getSchema(ctx context.Context, db *sql.DB, tableName string) (*core.Schema, error) {
	schema := &core.Schema{
		TableName: tableName,
		Columns:   []core.Column{},
		Indexes:   []core.Index{},
	}

	query := `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var colName, dataType, isNullable string
		var colDefault sql.NullString
		if err := rows.Scan(&colName, &dataType, &isNullable, &colDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		column := core.Column{
			Name:     colName,
			Type:     dataType,
			Nullable: isNullable == "YES",
		}
		if colDefault.Valid {
			column.Default = colDefault.String
		}
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	pkQuery := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = current_schema() AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`
	pkColumns, err := scanNames(ctx, db, pkQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}
	if len(pkColumns) > 0 {
		schema.PrimaryKey = pkColumns[0]
		schema.Indexes = append(schema.Indexes, core.Index{
			Name:    tableName + "_pkey",
			Columns: pkColumns,
			Unique:  true,
			Primary: true,
		})
	}

	return schema, nil
}

func (postgresDialect) getTables(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
	`
	return scanNames(ctx, db, query)
}
