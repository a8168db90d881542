package migrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// Mismatch is one mapped column whose attribute and row values differ.
type Mismatch struct {
	Column    string `json:"column"`
	Key       string `json:"key"`
	Attribute string `json:"attribute"`
	Row       string `json:"row"`
}

// VerifyReport compares the two representations of one record.
type VerifyReport struct {
	Kind       core.Kind  `json:"kind"`
	RecordID   int64      `json:"record_id"`
	RowFound   bool       `json:"row_found"`
	Attributes int        `json:"attributes"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Consistent reports whether a row exists and agrees with the attributes.
func (r *VerifyReport) Consistent() bool {
	return r.RowFound && len(r.Mismatches) == 0
}

// Verify compares the attribute and row representations of a record.
func (d *Driver) Verify(ctx context.Context, kind core.Kind, recordID int64) (*VerifyReport, error) {
	engine, err := d.Engine(kind)
	if err != nil {
		return nil, err
	}
	return engine.Verify(ctx, recordID)
}

// Verify compares the record's mapped attributes with its row. Values are
// compared after normalising both sides through the column type.
func (e *Engine) Verify(ctx context.Context, recordID int64) (*VerifyReport, error) {
	attrs, err := e.attrs.GetAll(ctx, recordID)
	if err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpRead, Err: err}
	}
	row, found, err := e.rows.Get(ctx, recordID)
	if err != nil {
		return nil, &MigrationError{RecordID: recordID, Op: OpRead, Err: err}
	}

	report := &VerifyReport{Kind: e.Kind(), RecordID: recordID, RowFound: found}
	for _, key := range e.mapping.Keys() {
		if _, ok := attrs[key]; ok {
			report.Attributes++
		}
	}
	if !found {
		return report, nil
	}

	mapper := e.translator.Mapper()
	for _, pair := range e.mapping.Pairs() {
		column, ok := e.rows.Schema().Column(pair.Column)
		if !ok {
			continue
		}

		attr := attrs[pair.Key]
		if attr != "" {
			if converted, err := mapper.ConvertToDBValue(attr, column.Type); err == nil {
				if s, err := e.translator.ToAttribute(converted, pair); err == nil {
					attr = s
				}
			}
		}

		value, _ := row.Get(pair.Column)
		rendered, err := e.translator.ToAttribute(value, pair)
		if err != nil {
			return nil, fmt.Errorf("failed to render column %s of record %d: %w", pair.Column, recordID, err)
		}

		if !sameValue(attr, rendered) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Column:    pair.Column,
				Key:       pair.Key,
				Attribute: attrs[pair.Key],
				Row:       rendered,
			})
		}
	}
	return report, nil
}

// sameValue treats numerically equal decimals ("12.50" and "12.5") as equal.
func sameValue(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}
