package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
)

// maxExcludeBinds caps the IDs bound into the NOT IN clause. Further excluded
// IDs are filtered from an enlarged result instead, keeping the statement
// well under every driver's bind parameter limit.
var maxExcludeBinds = 500

// Candidates finds registry records of a kind with no row in the kind's table.
type Candidates struct {
	db           core.Database
	recordsTable string
	tables       map[core.Kind]string
}

// NewCandidates creates a candidate source. tables maps each kind to its row table.
func NewCandidates(db core.Database, recordsTable string, tables map[core.Kind]string) (*Candidates, error) {
	if err := database.ValidIdentifier(recordsTable); err != nil {
		return nil, fmt.Errorf("invalid records table: %w", err)
	}
	copied := make(map[core.Kind]string, len(tables))
	for kind, table := range tables {
		if err := database.ValidIdentifier(table); err != nil {
			return nil, fmt.Errorf("invalid table for %s: %w", kind, err)
		}
		copied[kind] = table
	}
	return &Candidates{db: db, recordsTable: recordsTable, tables: copied}, nil
}

func (c *Candidates) pendingFrom(kind core.Kind) (string, error) {
	table, ok := c.tables[kind]
	if !ok {
		return "", fmt.Errorf("no row table configured for kind %s", kind)
	}
	return fmt.Sprintf("FROM %s r LEFT JOIN %s t ON t.id = r.id WHERE r.kind = ? AND t.id IS NULL", c.recordsTable, table), nil
}

// CountPending counts records of kind that have no row.
func (c *Candidates) CountPending(ctx context.Context, kind core.Kind) (int64, error) {
	from, err := c.pendingFrom(kind)
	if err != nil {
		return 0, err
	}
	n, err := queryCount(ctx, c.db, "SELECT COUNT(*) "+from, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to count pending %s records: %w", kind, err)
	}
	return n, nil
}

// PendingIDs returns up to limit pending IDs, newest first, excluding the given IDs.
func (c *Candidates) PendingIDs(ctx context.Context, kind core.Kind, limit int, exclude []int64) ([]int64, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}
	from, err := c.pendingFrom(kind)
	if err != nil {
		return nil, err
	}

	bound, overflow := exclude, []int64(nil)
	if len(exclude) > maxExcludeBinds {
		bound, overflow = exclude[:maxExcludeBinds], exclude[maxExcludeBinds:]
	}
	skip := make(map[int64]struct{}, len(overflow))
	for _, id := range overflow {
		skip[id] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("SELECT r.id ")
	b.WriteString(from)
	args := make([]interface{}, 0, len(bound)+1)
	args = append(args, string(kind))
	if len(bound) > 0 {
		b.WriteString(" AND r.id NOT IN (")
		for i, id := range bound {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, id)
		}
		b.WriteString(")")
	}
	// Every overflow ID can take at most one slot of the result.
	fmt.Fprintf(&b, " ORDER BY r.created_at DESC, r.id DESC LIMIT %d", limit+len(skip))

	rows, err := c.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending %s records: %w", kind, err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending id: %w", err)
		}
		if _, skipped := skip[id]; skipped || len(ids) == limit {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending %s records: %w", kind, err)
	}
	return ids, nil
}
