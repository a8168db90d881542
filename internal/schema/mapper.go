package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AttributeTimeLayout is the layout timestamps are written with in the
// attribute store.
const AttributeTimeLayout = "2006-01-02 15:04:05"

// TypeMapper handles mapping between database column types, Go values and
// attribute strings.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

type typeClass int

const (
	classString typeClass = iota
	classInt
	classInt64
	classFloat
	classDecimal
	classBytes
	classTime
	classBool
	classJSON
)

// classify reduces a dialect specific column type to a conversion class.
// MySQL, PostgreSQL and SQLite spellings are all accepted.
func classify(dbType string) typeClass {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if t == "TINYINT(1)" {
		return classBool
	}
	if idx := strings.Index(t, "("); idx > 0 {
		t = strings.TrimSpace(t[:idx])
	}

	switch t {
	case "INT", "INTEGER", "MEDIUMINT", "SMALLINT", "TINYINT", "INT2", "INT4":
		return classInt
	case "BIGINT", "INT8", "BIGSERIAL", "SERIAL":
		return classInt64
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL", "FLOAT4", "FLOAT8":
		return classFloat
	case "DECIMAL", "NUMERIC":
		return classDecimal
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "BYTEA":
		return classBytes
	case "DATE", "DATETIME", "TIMESTAMP", "TIME",
		"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return classTime
	case "BOOLEAN", "BOOL":
		return classBool
	case "JSON", "JSONB":
		return classJSON
	default:
		return classString
	}
}

// ConvertToDBValue converts a value (usually an attribute string) into a
// value suitable for a column of the given type.
func (tm *TypeMapper) ConvertToDBValue(value interface{}, dbType string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch classify(dbType) {
	case classInt, classInt64:
		return tm.toInt64(value)
	case classFloat:
		return tm.toFloat64(value)
	case classDecimal:
		return tm.toDecimal(value)
	case classBytes:
		return tm.toBytes(value)
	case classTime:
		t, err := tm.toTime(value)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case classBool:
		return tm.toBool(value)
	case classJSON:
		return tm.toJSON(value)
	default:
		return tm.toString(value)
	}
}

// ConvertFromDBValue converts a scanned database value into a Go value.
// Handles NULL values and driver specific representations such as []byte
// for text columns.
func (tm *TypeMapper) ConvertFromDBValue(value interface{}, dbType string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	if valuer, ok := value.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		value = val
	}

	class := classify(dbType)
	if b, ok := value.([]byte); ok && class != classBytes {
		value = string(b)
	}

	switch class {
	case classInt, classInt64:
		return tm.toInt64(value)
	case classFloat:
		return tm.toFloat64(value)
	case classDecimal:
		return tm.toDecimal(value)
	case classBytes:
		return tm.toBytes(value)
	case classTime:
		return tm.toTime(value)
	case classBool:
		return tm.toBool(value)
	case classJSON:
		return tm.toJSON(value)
	default:
		if dbType == "" {
			return value, nil
		}
		return tm.toString(value)
	}
}

// FormatAttribute renders a column value as an attribute string.
func (tm *TypeMapper) FormatAttribute(value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	if t, ok := value.(time.Time); ok {
		if t.IsZero() {
			return "", nil
		}
		return t.UTC().Format(AttributeTimeLayout), nil
	}
	return tm.toString(value)
}

// IsEmpty reports whether a column value carries no data. Numeric zero and
// false are data and are not empty.
func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(v) == 0
	case time.Time:
		return v.IsZero()
	case *time.Time:
		return v == nil || v.IsZero()
	default:
		return false
	}
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func (tm *TypeMapper) toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// toDecimal keeps decimals as strings to preserve precision, but rejects
// anything that is not a number.
func (tm *TypeMapper) toDecimal(value interface{}) (string, error) {
	s, err := tm.toString(value)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", fmt.Errorf("cannot convert %q to decimal: %w", s, err)
	}
	return s, nil
}

func (tm *TypeMapper) toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.UTC().Format(AttributeTimeLayout), nil
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to string: %w", value, err)
		}
		return string(bytes), nil
	}
}

func (tm *TypeMapper) toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", value)
	}
}

var timeLayouts = []string{
	AttributeTimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (tm *TypeMapper) toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		// Attribute stores frequently hold unix timestamps.
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func (tm *TypeMapper) toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i != 0, nil
			}
			return false, fmt.Errorf("cannot convert string to bool: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func (tm *TypeMapper) toJSON(value interface{}) (interface{}, error) {
	// JSON columns are written as JSON strings.
	switch v := value.(type) {
	case string:
		var result interface{}
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return nil, fmt.Errorf("cannot parse JSON string: %w", err)
		}
		return v, nil
	case []byte:
		var result interface{}
		if err := json.Unmarshal(v, &result); err != nil {
			return nil, fmt.Errorf("cannot parse JSON bytes: %w", err)
		}
		return string(v), nil
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal %T to JSON: %w", v, err)
		}
		return string(jsonBytes), nil
	}
}
