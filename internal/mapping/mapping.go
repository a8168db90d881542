// Package mapping holds the static column name <-> attribute key tables used
// to move records between the attribute store and the row tables.
package mapping

import (
	"fmt"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// PrimaryKey is the primary key column of every row table. It is never
// mapped to an attribute.
const PrimaryKey = "id"

// Style is the native text form an attribute key stores its value in.
// Restoring a row renders each column back in its key's style.
type Style int

const (
	// StylePlain renders values with the default attribute formatting.
	StylePlain Style = iota
	// StyleYesNo renders booleans as "yes" or "no".
	StyleYesNo
	// StyleUnix renders timestamps as unix seconds.
	StyleUnix
	// StyleDecimal renders numbers with at least Scale fractional digits.
	StyleDecimal
)

// Pair binds one row column to one attribute key.
type Pair struct {
	Column string
	Key    string
	Style  Style
	// Scale is the minimum number of fractional digits for StyleDecimal.
	Scale int
}

// Mapping is an immutable, ordered column -> attribute key table for one kind.
type Mapping struct {
	kind     core.Kind
	pairs    []Pair
	byColumn map[string]int
	byKey    map[string]string
}

// New builds a mapping. Columns and keys must be unique and the primary key
// column may not appear.
func New(kind core.Kind, pairs []Pair) (*Mapping, error) {
	m := &Mapping{
		kind:     kind,
		pairs:    make([]Pair, 0, len(pairs)),
		byColumn: make(map[string]int, len(pairs)),
		byKey:    make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if p.Column == "" || p.Key == "" {
			return nil, fmt.Errorf("mapping for %s has an empty column or key", kind)
		}
		if p.Scale < 0 {
			return nil, fmt.Errorf("mapping for %s has a negative scale for %q", kind, p.Column)
		}
		if p.Column == PrimaryKey {
			return nil, fmt.Errorf("mapping for %s maps the primary key column %q", kind, PrimaryKey)
		}
		if _, dup := m.byColumn[p.Column]; dup {
			return nil, fmt.Errorf("mapping for %s has duplicate column %q", kind, p.Column)
		}
		if _, dup := m.byKey[p.Key]; dup {
			return nil, fmt.Errorf("mapping for %s has duplicate key %q", kind, p.Key)
		}
		m.byColumn[p.Column] = len(m.pairs)
		m.pairs = append(m.pairs, p)
		m.byKey[p.Key] = p.Column
	}
	return m, nil
}

func mustNew(kind core.Kind, pairs []Pair) *Mapping {
	m, err := New(kind, pairs)
	if err != nil {
		panic(err)
	}
	return m
}

// Kind returns the kind this mapping describes.
func (m *Mapping) Kind() core.Kind {
	return m.kind
}

// Pairs returns a copy of the ordered pairs.
func (m *Mapping) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// KeyFor returns the attribute key mapped to a column.
func (m *Mapping) KeyFor(column string) (string, bool) {
	p, ok := m.PairFor(column)
	return p.Key, ok
}

// PairFor returns the pair of a mapped column.
func (m *Mapping) PairFor(column string) (Pair, bool) {
	i, ok := m.byColumn[column]
	if !ok {
		return Pair{}, false
	}
	return m.pairs[i], true
}

// ColumnFor returns the column mapped to an attribute key.
func (m *Mapping) ColumnFor(key string) (string, bool) {
	c, ok := m.byKey[key]
	return c, ok
}

// Columns returns the mapped column names in order.
func (m *Mapping) Columns() []string {
	out := make([]string, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p.Column)
	}
	return out
}

// Keys returns the mapped attribute keys in column order.
func (m *Mapping) Keys() []string {
	out := make([]string, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p.Key)
	}
	return out
}

// Len returns the number of mapped columns.
func (m *Mapping) Len() int {
	return len(m.pairs)
}

// For returns the built-in mapping for a kind. The same kind always yields
// the same mapping instance.
func For(kind core.Kind) (*Mapping, error) {
	switch kind {
	case core.KindOrder:
		return orderMapping, nil
	case core.KindRefund:
		return refundMapping, nil
	default:
		return nil, fmt.Errorf("no column mapping for kind %q", kind)
	}
}
