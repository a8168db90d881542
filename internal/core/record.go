package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies which family of records a record ID belongs to.
type Kind string

const (
	// KindOrder is a customer order.
	KindOrder Kind = "order"

	// KindRefund is a refund issued against an order.
	KindRefund Kind = "refund"
)

var (
	// ErrRecordNotFound is returned by a RecordLoader when the ID is unknown.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRowNotFound is returned when a row is required but absent.
	ErrRowNotFound = errors.New("row not found")
)

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindOrder, KindRefund}
}

// ParseKind converts a user supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindOrder:
		return KindOrder, nil
	case KindRefund:
		return KindRefund, nil
	default:
		return "", fmt.Errorf("unsupported record kind: %q", s)
	}
}

func (k Kind) String() string {
	return string(k)
}

// Record is the minimal view of a record the migration needs: its identity.
type Record struct {
	ID        int64
	Kind      Kind
	CreatedAt time.Time
}

// Row is a record's full state as an ordered column -> value mapping.
// Column order is insertion order and is preserved across Set calls on
// existing columns.
type Row struct {
	columns []string
	values  map[string]interface{}
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// Set assigns a value to a column, appending the column if it is new.
func (r *Row) Set(column string, value interface{}) {
	if _, exists := r.values[column]; !exists {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value of a column and whether the column is present.
func (r *Row) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Delete removes a column from the row.
func (r *Row) Delete(column string) {
	if _, exists := r.values[column]; !exists {
		return
	}
	delete(r.values, column)
	for i, c := range r.columns {
		if c == column {
			r.columns = append(r.columns[:i], r.columns[i+1:]...)
			break
		}
	}
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.columns)
}

// Map returns an unordered copy of the row.
func (r *Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the column list and a shallow copy of values.
func (r *Row) Clone() *Row {
	c := NewRow()
	for _, col := range r.columns {
		c.Set(col, r.values[col])
	}
	return c
}
