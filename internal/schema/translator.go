package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
)

// Translator converts between attribute sets, rows and SQL statements.
type Translator struct {
	mapper *TypeMapper
}

// NewTranslator creates a new translator.
func NewTranslator() *Translator {
	return &Translator{mapper: NewTypeMapper()}
}

// Mapper returns the type mapper used by the translator.
func (t *Translator) Mapper() *TypeMapper {
	return t.mapper
}

// ToRow builds a row payload from a record's attributes. Only mapped keys
// with a non-empty value are carried over; the primary key is always set.
// When schema is nil values stay as strings.
func (t *Translator) ToRow(recordID int64, attrs map[string]string, m *mapping.Mapping, schema *core.Schema) (*core.Row, error) {
	if m == nil {
		return nil, fmt.Errorf("mapping cannot be nil")
	}

	row := core.NewRow()
	row.Set(mapping.PrimaryKey, recordID)

	for _, pair := range m.Pairs() {
		raw, ok := attrs[pair.Key]
		if !ok || IsEmpty(raw) {
			continue
		}
		if schema == nil {
			row.Set(pair.Column, raw)
			continue
		}
		column, ok := schema.Column(pair.Column)
		if !ok {
			return nil, fmt.Errorf("mapped column '%s' does not exist in table %s", pair.Column, schema.TableName)
		}
		converted, err := t.mapper.ConvertToDBValue(raw, column.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to convert attribute '%s' for column '%s': %w", pair.Key, pair.Column, err)
		}
		row.Set(pair.Column, converted)
	}

	return row, nil
}

// ToAttribute renders a column value as an attribute string in the style of
// the pair's key, so a value read from a row comes back in the same text form
// it was migrated from.
func (t *Translator) ToAttribute(value interface{}, pair mapping.Pair) (string, error) {
	if value == nil {
		return "", nil
	}
	switch pair.Style {
	case mapping.StyleYesNo:
		b, err := t.mapper.toBool(value)
		if err != nil {
			return "", err
		}
		if b {
			return "yes", nil
		}
		return "no", nil
	case mapping.StyleUnix:
		ts, err := t.mapper.toTime(value)
		if err != nil {
			return "", err
		}
		if ts.IsZero() {
			return "", nil
		}
		return strconv.FormatInt(ts.Unix(), 10), nil
	case mapping.StyleDecimal:
		s, err := t.mapper.toDecimal(value)
		if err != nil {
			return "", err
		}
		return withScale(s, pair.Scale), nil
	default:
		return t.mapper.FormatAttribute(value)
	}
}

// withScale pads or trims trailing fractional zeros of a plain decimal
// string to exactly scale digits. Significant digits are never dropped.
func withScale(s string, scale int) string {
	if strings.ContainsAny(s, "eE") {
		return s
	}
	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	if len(frac) < scale {
		frac += strings.Repeat("0", scale-len(frac))
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ToDB converts a row into an INSERT statement and its arguments.
// Columns are emitted in row order.
func (t *Translator) ToDB(row *core.Row, schema *core.Schema) (string, []interface{}, error) {
	if row == nil {
		return "", nil, fmt.Errorf("row cannot be nil")
	}
	if schema == nil {
		return "", nil, fmt.Errorf("schema cannot be nil")
	}

	validator := NewSchemaValidator(schema)
	if err := validator.ValidateRow(row); err != nil {
		return "", nil, fmt.Errorf("validation failed: %w", err)
	}

	columns := make([]string, 0, row.Len())
	placeholders := make([]string, 0, row.Len())
	args := make([]interface{}, 0, row.Len())

	for _, name := range row.Columns() {
		col, _ := schema.Column(name)
		value, _ := row.Get(name)

		columns = append(columns, name)
		placeholders = append(placeholders, "?")

		converted, err := t.mapper.ConvertToDBValue(value, col.Type)
		if err != nil {
			return "", nil, fmt.Errorf("failed to convert value for column '%s': %w", name, err)
		}
		args = append(args, converted)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.TableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	return query, args, nil
}

// ToDBUpdate converts changed columns into an UPDATE statement and arguments.
func (t *Translator) ToDBUpdate(recordID int64, changed *core.Row, schema *core.Schema) (string, []interface{}, error) {
	if changed == nil || changed.Len() == 0 {
		return "", nil, fmt.Errorf("updates cannot be empty")
	}
	if schema == nil {
		return "", nil, fmt.Errorf("schema cannot be nil")
	}

	validator := NewSchemaValidator(schema)
	if err := validator.ValidatePartialRow(changed); err != nil {
		return "", nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validator.ValidatePrimaryKey(recordID); err != nil {
		return "", nil, fmt.Errorf("invalid primary key: %w", err)
	}
	if _, exists := changed.Get(schema.PrimaryKey); exists {
		return "", nil, fmt.Errorf("cannot update primary key '%s'", schema.PrimaryKey)
	}

	setParts := make([]string, 0, changed.Len())
	args := make([]interface{}, 0, changed.Len()+1)

	for _, name := range changed.Columns() {
		col, _ := schema.Column(name)
		value, _ := changed.Get(name)

		setParts = append(setParts, fmt.Sprintf("%s = ?", name))
		converted, err := t.mapper.ConvertToDBValue(value, col.Type)
		if err != nil {
			return "", nil, fmt.Errorf("failed to convert value for column '%s': %w", name, err)
		}
		args = append(args, converted)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		schema.TableName,
		strings.Join(setParts, ", "),
		schema.PrimaryKey,
	)
	args = append(args, recordID)

	return query, args, nil
}

// FromDB scans the current result row into a core.Row. Columns are taken
// from the result set; those known to the schema are converted to their Go
// types.
func (t *Translator) FromDB(rows core.Rows, schema *core.Schema) (*core.Row, error) {
	if rows == nil {
		return nil, fmt.Errorf("rows cannot be nil")
	}

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	values := make([]interface{}, len(names))
	valuePtrs := make([]interface{}, len(names))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := core.NewRow()
	for i, name := range names {
		var dbType string
		if col, ok := schema.Column(name); ok {
			dbType = col.Type
		}
		converted, err := t.mapper.ConvertFromDBValue(values[i], dbType)
		if err != nil {
			return nil, fmt.Errorf("failed to convert value for column '%s': %w", name, err)
		}
		row.Set(name, converted)
	}

	return row, nil
}
