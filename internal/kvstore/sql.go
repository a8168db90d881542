package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// SQLAttributeStore keeps attributes in an entity-attribute-value table:
//
//	<table>(record_id, attr_key, attr_value)
//
// with one row per (record_id, attr_key).
type SQLAttributeStore struct {
	db    core.Database
	table string
	log   zerolog.Logger
}

// NewSQLAttributeStore creates a store over the given table.
func NewSQLAttributeStore(db core.Database, table string, log zerolog.Logger) (*SQLAttributeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if err := database.ValidIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid attribute table: %w", err)
	}
	return &SQLAttributeStore{
		db:    db,
		table: table,
		log:   logger.Component(log, "sql-attributes"),
	}, nil
}

// GetAll returns every attribute of the record.
func (s *SQLAttributeStore) GetAll(ctx context.Context, recordID int64) (map[string]string, error) {
	query := fmt.Sprintf("SELECT attr_key, attr_value FROM %s WHERE record_id = ?", s.table)
	rows, err := s.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes of record %d: %w", recordID, err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan attribute of record %d: %w", recordID, err)
		}
		attrs[key] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attributes of record %d: %w", recordID, err)
	}
	return attrs, nil
}

// Get returns one attribute.
func (s *SQLAttributeStore) Get(ctx context.Context, recordID int64, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT attr_value FROM %s WHERE record_id = ? AND attr_key = ?", s.table)
	rows, err := s.db.Query(ctx, query, recordID, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to get attribute %s of record %d: %w", key, recordID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value sql.NullString
	if err := rows.Scan(&value); err != nil {
		return "", false, fmt.Errorf("failed to scan attribute %s of record %d: %w", key, recordID, err)
	}
	return value.String, true, nil
}

// Set replaces an attribute inside a transaction so a key never holds two values.
func (s *SQLAttributeStore) Set(ctx context.Context, recordID int64, key, value string) (err error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to set attribute %s of record %d: %w", key, recordID, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Int64("record_id", recordID).Msg("rollback failed")
			}
		}
	}()

	del := fmt.Sprintf("DELETE FROM %s WHERE record_id = ? AND attr_key = ?", s.table)
	if _, err = tx.Exec(ctx, del, recordID, key); err != nil {
		return fmt.Errorf("failed to set attribute %s of record %d: %w", key, recordID, err)
	}
	ins := fmt.Sprintf("INSERT INTO %s (record_id, attr_key, attr_value) VALUES (?, ?, ?)", s.table)
	if _, err = tx.Exec(ctx, ins, recordID, key, value); err != nil {
		return fmt.Errorf("failed to set attribute %s of record %d: %w", key, recordID, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attribute %s of record %d: %w", key, recordID, err)
	}
	return nil
}

// Delete removes an attribute.
func (s *SQLAttributeStore) Delete(ctx context.Context, recordID int64, key string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE record_id = ? AND attr_key = ?", s.table)
	result, err := s.db.Exec(ctx, query, recordID, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete attribute %s of record %d: %w", key, recordID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the database is owned by the caller.
func (s *SQLAttributeStore) Close() error {
	return nil
}

// SQLAttributeStoreFactory creates EAV-table stores on the shared database.
type SQLAttributeStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *SQLAttributeStoreFactory) Type() string {
	return "sql"
}

// Validate validates the sql-specific configuration.
func (f *SQLAttributeStoreFactory) Validate(config registry.InternalAttributeStoreConfig) error {
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for the sql attribute store")
	}
	return database.ValidIdentifier(config.TableName)
}

// Create creates a new SQL attribute store.
func (f *SQLAttributeStoreFactory) Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error) {
	store, err := NewSQLAttributeStore(deps.Database, config.TableName, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql attribute store: %w", err)
	}
	return store, nil
}

func init() {
	register(&SQLAttributeStoreFactory{})
}
