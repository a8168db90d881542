// Package iterator streams the rows of a read query in LIMIT/OFFSET batches
// while the matching set may be shrinking underneath it.
package iterator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// DefaultBatchSize is used when New is given a non-positive batch size.
const DefaultBatchSize = 500

// QueryRunner executes the iterator's queries. core.RowStore satisfies it.
type QueryRunner interface {
	QueryCount(ctx context.Context, query string, args ...interface{}) (int64, error)
	QueryRows(ctx context.Context, query string, args ...interface{}) ([]*core.Row, error)
}

// QueryExecutionError reports a failed batch or count query.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v (query: %s)", e.Err, e.Query)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

var (
	projectionPattern = regexp.MustCompile(`(?is)SELECT\s.*?\sFROM\s`)
	orderByPattern    = regexp.MustCompile(`(?is)\sORDER\s+BY\s[^()]*$`)
)

// countQueryFor replaces the projection of query with COUNT(*). It returns
// "" unless there is exactly one projection to replace. A trailing ORDER BY
// is dropped since some databases reject it alongside an aggregate.
func countQueryFor(query string) string {
	if len(projectionPattern.FindAllStringIndex(query, -1)) != 1 {
		return ""
	}
	count := projectionPattern.ReplaceAllLiteralString(query, "SELECT COUNT(*) FROM ")
	return strings.TrimSpace(orderByPattern.ReplaceAllLiteralString(count, ""))
}

// Iterator is a forward-only cursor over the rows of a query. It is not safe
// for concurrent use; batches must be requested strictly in sequence.
//
//	for ok, err := it.HasCurrent(ctx); ok; ok, err = it.HasCurrent(ctx) {
//		row := it.Current()
//		...
//		it.Advance()
//	}
type Iterator struct {
	runner     QueryRunner
	query      string
	countQuery string
	args       []interface{}
	batchSize  int

	batch    []*core.Row
	index    int
	position int
	offset   int
	lastPage bool
	depleted bool

	// baseline is the count taken by the previous load. Only load moves it.
	baseline    int64
	hasBaseline bool
}

// New creates an iterator over query, which must not carry LIMIT or OFFSET.
func New(runner QueryRunner, query string, batchSize int, args ...interface{}) *Iterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	return &Iterator{
		runner:     runner,
		query:      query,
		countQuery: countQueryFor(query),
		args:       args,
		batchSize:  batchSize,
	}
}

// CountEnabled reports whether a count query could be derived. Without one
// no shrink correction is applied.
func (it *Iterator) CountEnabled() bool {
	return it.countQuery != ""
}

// HasCurrent reports whether Current refers to a row, loading the next batch
// when the current one is exhausted.
func (it *Iterator) HasCurrent(ctx context.Context) (bool, error) {
	if it.depleted {
		return false, nil
	}
	if it.index < len(it.batch) {
		return true, nil
	}
	if it.lastPage {
		it.deplete()
		return false, nil
	}
	if err := it.load(ctx); err != nil {
		return false, err
	}
	if len(it.batch) == 0 {
		it.deplete()
		return false, nil
	}
	return true, nil
}

// Advance moves to the next row of the current batch. It never fetches.
func (it *Iterator) Advance() {
	if it.index < len(it.batch) {
		it.index++
		it.position++
	}
}

// Current returns the current row, or nil when there is none.
func (it *Iterator) Current() *core.Row {
	if it.index < len(it.batch) {
		return it.batch[it.index]
	}
	return nil
}

// Position returns the zero-based index of the current row across all batches.
func (it *Iterator) Position() int {
	return it.position
}

// Count runs the count query. It leaves the batching state untouched, so it
// may be called between batches without affecting which rows are returned.
func (it *Iterator) Count(ctx context.Context) (int64, error) {
	if it.countQuery == "" {
		return 0, fmt.Errorf("count is not available for query: %s", it.query)
	}
	n, err := it.runner.QueryCount(ctx, it.countQuery, it.args...)
	if err != nil {
		return 0, &QueryExecutionError{Query: it.countQuery, Err: err}
	}
	return n, nil
}

// Reset returns the iterator to the start of the sequence.
func (it *Iterator) Reset() {
	it.clear()
	it.depleted = false
}

// load fetches the next batch, first pulling the offset back by however many
// rows left the matching set since the previous load.
func (it *Iterator) load(ctx context.Context) error {
	if it.countQuery != "" {
		n, err := it.Count(ctx)
		if err != nil {
			return err
		}
		if it.hasBaseline && n < it.baseline {
			it.offset -= int(it.baseline - n)
			if it.offset < 0 {
				it.offset = 0
			}
		}
		it.baseline = n
		it.hasBaseline = true
	}

	query := fmt.Sprintf("%s LIMIT %d OFFSET %d", it.query, it.batchSize, it.offset)
	rows, err := it.runner.QueryRows(ctx, query, it.args...)
	if err != nil {
		return &QueryExecutionError{Query: query, Err: err}
	}

	it.batch = rows
	it.index = 0
	it.offset += len(rows)
	it.lastPage = len(rows) < it.batchSize
	return nil
}

func (it *Iterator) deplete() {
	it.clear()
	it.depleted = true
}

func (it *Iterator) clear() {
	it.batch = nil
	it.index = 0
	it.position = 0
	it.offset = 0
	it.baseline = 0
	it.hasBaseline = false
	it.lastPage = false
}
