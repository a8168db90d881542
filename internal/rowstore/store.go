// Package rowstore implements the relational side of a migration: one table
// per record kind with one row per record, the record registry, and the
// discovery of records that have no row yet.
package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/schema"
)

// Store implements core.RowStore for a single table.
type Store struct {
	db         core.Database
	schema     *core.Schema
	translator *schema.Translator
	selectList string
	log        zerolog.Logger
}

// Open loads the table's schema from the database and returns a store for it.
func Open(ctx context.Context, db core.Database, table string, log zerolog.Logger) (*Store, error) {
	s, err := db.GetSchema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema of %s: %w", table, err)
	}
	return NewStore(db, s, log)
}

// NewStore creates a store over a table with a known schema.
func NewStore(db core.Database, s *core.Schema, log zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if s == nil || len(s.Columns) == 0 {
		return nil, fmt.Errorf("schema must describe at least one column")
	}
	if s.PrimaryKey == "" {
		return nil, fmt.Errorf("table %s does not have a primary key", s.TableName)
	}
	if err := database.ValidIdentifier(s.TableName); err != nil {
		return nil, err
	}
	names := s.ColumnNames()
	for _, name := range names {
		if err := database.ValidIdentifier(name); err != nil {
			return nil, fmt.Errorf("table %s: %w", s.TableName, err)
		}
	}

	return &Store{
		db:         db,
		schema:     s,
		translator: schema.NewTranslator(),
		selectList: strings.Join(names, ", "),
		log:        logger.Component(log, "rowstore").With().Str("table", s.TableName).Logger(),
	}, nil
}

// Table returns the backing table name.
func (s *Store) Table() string {
	return s.schema.TableName
}

// Schema returns the table's schema.
func (s *Store) Schema() *core.Schema {
	return s.schema
}

// Get returns the row for recordID.
func (s *Store) Get(ctx context.Context, recordID int64) (*core.Row, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", s.selectList, s.schema.TableName, s.schema.PrimaryKey)
	rows, err := s.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get row %d from %s: %w", recordID, s.schema.TableName, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("failed to get row %d from %s: %w", recordID, s.schema.TableName, err)
		}
		return nil, false, nil
	}
	row, err := s.translator.FromDB(rows, s.schema)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read row %d from %s: %w", recordID, s.schema.TableName, err)
	}
	return row, true, nil
}

// Insert writes a new row. A primary-key conflict surfaces as the driver's error.
func (s *Store) Insert(ctx context.Context, row *core.Row) error {
	query, args, err := s.translator.ToDB(row, s.schema)
	if err != nil {
		return fmt.Errorf("failed to build insert for %s: %w", s.schema.TableName, err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", s.schema.TableName, err)
	}
	s.log.Debug().Interface("id", firstValue(row, s.schema.PrimaryKey)).Int("columns", row.Len()).Msg("inserted row")
	return nil
}

// Update changes the given columns of a row.
func (s *Store) Update(ctx context.Context, recordID int64, changed *core.Row) (bool, error) {
	query, args, err := s.translator.ToDBUpdate(recordID, changed, s.schema)
	if err != nil {
		return false, fmt.Errorf("failed to build update for %s: %w", s.schema.TableName, err)
	}
	result, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update row %d in %s: %w", recordID, s.schema.TableName, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Delete removes a row.
func (s *Store) Delete(ctx context.Context, recordID int64) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.schema.TableName, s.schema.PrimaryKey)
	result, err := s.db.Exec(ctx, query, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to delete row %d from %s: %w", recordID, s.schema.TableName, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// QueryCount runs a query whose first column of the first row is a count.
func (s *Store) QueryCount(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return queryCount(ctx, s.db, query, args...)
}

// QueryRows runs a read query and converts each result row using the table schema.
func (s *Store) QueryRows(ctx context.Context, query string, args ...interface{}) ([]*core.Row, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*core.Row
	for rows.Next() {
		row, err := s.translator.FromDB(rows, s.schema)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryCount(ctx context.Context, db core.Database, query string, args ...interface{}) (int64, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("count query returned no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}
	return n, nil
}

func firstValue(row *core.Row, column string) interface{} {
	v, _ := row.Get(column)
	return v
}
