package core

import (
	"context"
)

// AttributeStore is the key/value representation of records: one entry per
// (record ID, attribute key). Values are plain strings.
type AttributeStore interface {
	// GetAll returns every attribute stored for the record.
	// A record with no attributes yields an empty map, not an error.
	GetAll(ctx context.Context, recordID int64) (map[string]string, error)

	// Get returns a single attribute and whether it exists.
	Get(ctx context.Context, recordID int64, key string) (string, bool, error)

	// Set creates or replaces an attribute.
	Set(ctx context.Context, recordID int64, key, value string) error

	// Delete removes an attribute and reports whether anything was removed.
	Delete(ctx context.Context, recordID int64, key string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// RowStore is the relational representation of one record kind: one row
// per record ID, keyed by the primary key column.
type RowStore interface {
	// Table returns the backing table name.
	Table() string

	// Schema returns the table's column contract.
	Schema() *Schema

	// Get returns the row for an ID; found is false when no row exists.
	Get(ctx context.Context, recordID int64) (row *Row, found bool, err error)

	// Insert writes a new row. A row with the same primary key must not exist.
	Insert(ctx context.Context, row *Row) error

	// Update changes the given columns and reports whether a row was touched.
	Update(ctx context.Context, recordID int64, changed *Row) (bool, error)

	// Delete removes the row and reports whether one existed.
	Delete(ctx context.Context, recordID int64) (bool, error)

	// QueryCount runs a query returning a single integer.
	QueryCount(ctx context.Context, query string, args ...interface{}) (int64, error)

	// QueryRows runs a read query and returns its rows in result order.
	QueryRows(ctx context.Context, query string, args ...interface{}) ([]*Row, error)
}

// RecordLoader resolves a record ID into a record.
type RecordLoader interface {
	// Load returns ErrRecordNotFound when the ID is unknown.
	Load(ctx context.Context, recordID int64) (*Record, error)
}

// CandidateSource finds records of a kind that exist but have no row yet.
type CandidateSource interface {
	// CountPending returns the number of records still awaiting migration.
	CountPending(ctx context.Context, kind Kind) (int64, error)

	// PendingIDs returns up to limit pending IDs, newest first, leaving out
	// any ID listed in exclude.
	PendingIDs(ctx context.Context, kind Kind, limit int, exclude []int64) ([]int64, error)
}
