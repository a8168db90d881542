// Package migrate moves records between the attribute store and the row
// tables, one record at a time (Engine) or in batches (Driver).
package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
	"github.com/rzpsarthak13/recordshift/internal/schema"
)

// Engine migrates single records of one kind.
type Engine struct {
	attrs      core.AttributeStore
	rows       core.RowStore
	mapping    *mapping.Mapping
	translator *schema.Translator
	validator  *schema.SchemaValidator
	log        zerolog.Logger
}

// MigrateOutcome describes a successful migration to a row. CleanupErr is set
// when the row was written but some source attributes could not be deleted.
type MigrateOutcome struct {
	RecordID    int64
	KeysDeleted int
	CleanupErr  error
}

// Partial reports whether source cleanup failed after the row was written.
func (o *MigrateOutcome) Partial() bool {
	return o.CleanupErr != nil
}

// NewEngine creates an engine over the given stores.
func NewEngine(attrs core.AttributeStore, rows core.RowStore, m *mapping.Mapping, log zerolog.Logger) (*Engine, error) {
	if attrs == nil {
		return nil, fmt.Errorf("attribute store cannot be nil")
	}
	if rows == nil {
		return nil, fmt.Errorf("row store cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("mapping cannot be nil")
	}
	return &Engine{
		attrs:      attrs,
		rows:       rows,
		mapping:    m,
		translator: schema.NewTranslator(),
		validator:  schema.NewSchemaValidator(rows.Schema()),
		log:        logger.Component(log, "engine").With().Str("kind", m.Kind().String()).Logger(),
	}, nil
}

// Kind returns the record kind handled by the engine.
func (e *Engine) Kind() core.Kind {
	return e.mapping.Kind()
}

// Rows returns the engine's row store.
func (e *Engine) Rows() core.RowStore {
	return e.rows
}

// Attributes returns the engine's attribute store.
func (e *Engine) Attributes() core.AttributeStore {
	return e.attrs
}

// Mapping returns the engine's column mapping.
func (e *Engine) Mapping() *mapping.Mapping {
	return e.mapping
}

// MigrateToRow inserts a row built from the record's mapped attributes. When
// deleteSource is set the mapped attribute keys are removed afterwards; a
// failed removal does not fail the migration and is reported in the outcome.
// Nothing is deleted if the insert fails.
func (e *Engine) MigrateToRow(ctx context.Context, recordID int64, deleteSource bool) (*MigrateOutcome, error) {
	attrs, err := e.attrs.GetAll(ctx, recordID)
	if err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpRead, Err: err}
	}

	row, err := e.translator.ToRow(recordID, attrs, e.mapping, e.rows.Schema())
	if err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpBuild, Err: err}
	}
	if err := e.validator.ValidateRow(row); err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpValidate, Columns: row.Columns(), Err: err}
	}
	if err := e.rows.Insert(ctx, row); err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpInsert, Columns: row.Columns(), Err: err}
	}

	outcome := &MigrateOutcome{RecordID: recordID}
	if deleteSource {
		outcome.KeysDeleted, outcome.CleanupErr = e.DeleteMigratedAttributeKeys(ctx, recordID)
		if outcome.CleanupErr != nil {
			e.log.Warn().Err(outcome.CleanupErr).Int64("record_id", recordID).
				Int("keys_deleted", outcome.KeysDeleted).
				Msg("Row written but source attributes were only partially deleted")
		}
	}

	e.log.Debug().Int64("record_id", recordID).Int("columns", row.Len()).Msg("Migrated record to row")
	return outcome, nil
}

// RestoreToAttributes writes the record's row back into the attribute store.
// Every populated column must be mapped; an unmapped populated column fails
// with a MigrationMappingError before anything is written. Mapped columns
// whose value is empty remove their key. With deleteSource the row is deleted
// once every column has been written.
func (e *Engine) RestoreToAttributes(ctx context.Context, recordID int64, deleteSource bool) error {
	row, found, err := e.rows.Get(ctx, recordID)
	if err != nil {
		return &MigrationError{RecordID: recordID, Op: OpRead, Err: err}
	}
	if !found {
		return &MigrationError{RecordID: recordID, Op: OpRead, Err: core.ErrRowNotFound}
	}

	primaryKey := e.rows.Schema().PrimaryKey
	if primaryKey == "" {
		primaryKey = mapping.PrimaryKey
	}

	var pending []string
	for _, column := range row.Columns() {
		if column == primaryKey {
			continue
		}
		value, _ := row.Get(column)
		if _, ok := e.mapping.KeyFor(column); !ok {
			if schema.IsEmpty(value) {
				continue
			}
			return &MigrationMappingError{Table: e.rows.Table(), Column: column, RecordID: recordID}
		}
		pending = append(pending, column)
	}

	var failed []string
	var errs []error
	for _, column := range pending {
		pair, _ := e.mapping.PairFor(column)
		value, _ := row.Get(column)
		if err := e.writeAttribute(ctx, recordID, pair, value); err != nil {
			failed = append(failed, column)
			errs = append(errs, fmt.Errorf("%s: %w", column, err))
		}
	}
	if len(failed) > 0 {
		return &MigrationError{RecordID: recordID, Op: OpRestore, Columns: failed, Err: errors.Join(errs...)}
	}

	if deleteSource {
		if _, err := e.DeleteRow(ctx, recordID); err != nil {
			return err
		}
	}

	e.log.Debug().Int64("record_id", recordID).Int("columns", len(pending)).Msg("Restored record to attributes")
	return nil
}

func (e *Engine) writeAttribute(ctx context.Context, recordID int64, pair mapping.Pair, value interface{}) error {
	if schema.IsEmpty(value) {
		_, err := e.attrs.Delete(ctx, recordID, pair.Key)
		return err
	}
	s, err := e.translator.ToAttribute(value, pair)
	if err != nil {
		return err
	}
	return e.attrs.Set(ctx, recordID, pair.Key, s)
}

// DeleteMigratedAttributeKeys removes every mapped attribute key of the
// record and returns how many existed. Failures are collected rather than
// stopping at the first one.
func (e *Engine) DeleteMigratedAttributeKeys(ctx context.Context, recordID int64) (int, error) {
	var deleted int
	var errs []error
	for _, key := range e.mapping.Keys() {
		ok, err := e.attrs.Delete(ctx, recordID, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if ok {
			deleted++
		}
	}
	if len(errs) > 0 {
		return deleted, &MigrationError{RecordID: recordID, Op: OpCleanup, Err: errors.Join(errs...)}
	}
	return deleted, nil
}

// DeleteRow removes the record's row and reports whether one existed.
func (e *Engine) DeleteRow(ctx context.Context, recordID int64) (bool, error) {
	ok, err := e.rows.Delete(ctx, recordID)
	if err != nil {
		return false, &MigrationError{RecordID: recordID, Op: OpDeleteRow, Err: err}
	}
	return ok, nil
}
