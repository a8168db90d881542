package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

var (
	// ErrNoProgress is reported when two consecutive candidate batches are identical.
	ErrNoProgress = errors.New("no progress between consecutive batches")

	// ErrUnexpectedEmptyBatch is reported when records are pending but no batch could be fetched.
	ErrUnexpectedEmptyBatch = errors.New("pending records reported but the candidate batch was empty")
)

// Op names the step of a single-record migration that failed.
type Op string

const (
	OpRead      Op = "read"
	OpBuild     Op = "build"
	OpValidate  Op = "validate"
	OpInsert    Op = "insert"
	OpRestore   Op = "restore"
	OpDeleteRow Op = "delete_row"
	OpCleanup   Op = "cleanup"
)

// MigrationMappingError reports a populated row column that has no attribute
// key. Restoring such a row would lose data.
type MigrationMappingError struct {
	Table    string
	Column   string
	RecordID int64
}

func (e *MigrationMappingError) Error() string {
	return fmt.Sprintf("column %s of table %s has a value for record %d but no attribute mapping", e.Column, e.Table, e.RecordID)
}

// MigrationError reports a failed store write or an incomplete reconciliation
// of a single record. Columns lists the columns left unmigrated, if known.
type MigrationError struct {
	RecordID int64
	Op       Op
	Columns  []string
	Err      error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("migration of record %d failed during %s", e.RecordID, e.Op)
	if len(e.Columns) > 0 {
		msg += fmt.Sprintf(" (columns: %s)", strings.Join(e.Columns, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// StructuralError aborts a whole run. It is never produced for a single bad
// record.
type StructuralError struct {
	Kind  core.Kind
	Batch []int64
	Err   error
}

func (e *StructuralError) Error() string {
	if len(e.Batch) > 0 {
		return fmt.Sprintf("%s migration aborted: %v (batch: %v)", e.Kind, e.Err, e.Batch)
	}
	return fmt.Sprintf("%s migration aborted: %v", e.Kind, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err aborted a run rather than a single record.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
