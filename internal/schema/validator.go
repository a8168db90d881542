package schema

import (
	"fmt"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// SchemaValidator validates rows against a table's column contract.
type SchemaValidator struct {
	schema *core.Schema
	mapper *TypeMapper
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(schema *core.Schema) *SchemaValidator {
	return &SchemaValidator{
		schema: schema,
		mapper: NewTypeMapper(),
	}
}

// ValidateRow validates a full row about to be inserted.
// Every column must exist in the table, the primary key must be present, and
// NOT NULL columns without a default must carry a value.
func (sv *SchemaValidator) ValidateRow(row *core.Row) error {
	if row == nil {
		return fmt.Errorf("row cannot be nil")
	}
	if sv.schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	if sv.schema.PrimaryKey != "" {
		if v, exists := row.Get(sv.schema.PrimaryKey); !exists || v == nil {
			return fmt.Errorf("missing required primary key: %s", sv.schema.PrimaryKey)
		}
	}

	for _, name := range row.Columns() {
		if _, ok := sv.schema.Column(name); !ok {
			return fmt.Errorf("column '%s' does not exist in table %s", name, sv.schema.TableName)
		}
	}

	for _, column := range sv.schema.Columns {
		value, exists := row.Get(column.Name)
		if !exists || value == nil {
			if !column.Nullable && column.Default == nil && column.Name != sv.schema.PrimaryKey {
				return fmt.Errorf("column '%s' cannot be NULL", column.Name)
			}
			continue
		}
		if err := sv.validateColumnType(column, value); err != nil {
			return fmt.Errorf("column '%s': %w", column.Name, err)
		}
	}

	return nil
}

// ValidatePartialRow validates the changed columns of an update.
func (sv *SchemaValidator) ValidatePartialRow(row *core.Row) error {
	if row == nil {
		return fmt.Errorf("row cannot be nil")
	}
	if sv.schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	for _, name := range row.Columns() {
		column, ok := sv.schema.Column(name)
		if !ok {
			return fmt.Errorf("column '%s' does not exist in table %s", name, sv.schema.TableName)
		}
		value, _ := row.Get(name)
		if value == nil {
			if !column.Nullable {
				return fmt.Errorf("column '%s' cannot be NULL", name)
			}
			continue
		}
		if err := sv.validateColumnType(column, value); err != nil {
			return fmt.Errorf("column '%s': %w", name, err)
		}
	}

	return nil
}

// validateColumnType checks the value converts to the column type.
func (sv *SchemaValidator) validateColumnType(column core.Column, value interface{}) error {
	_, err := sv.mapper.ConvertToDBValue(value, column.Type)
	if err != nil {
		return fmt.Errorf("type mismatch: expected %s, got %T: %w", column.Type, value, err)
	}
	return nil
}

// ValidatePrimaryKey validates that a primary key value is usable.
func (sv *SchemaValidator) ValidatePrimaryKey(key interface{}) error {
	if key == nil {
		return fmt.Errorf("primary key cannot be nil")
	}
	if sv.schema == nil || sv.schema.PrimaryKey == "" {
		return fmt.Errorf("schema has no primary key defined")
	}

	pkColumn, ok := sv.schema.Column(sv.schema.PrimaryKey)
	if !ok {
		return fmt.Errorf("primary key column '%s' not found in schema", sv.schema.PrimaryKey)
	}
	return sv.validateColumnType(pkColumn, key)
}
