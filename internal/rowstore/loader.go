package rowstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/schema"
)

// Loader resolves record IDs through the record registry table
// (id, kind, created_at).
type Loader struct {
	db     core.Database
	table  string
	mapper *schema.TypeMapper
}

// NewLoader creates a loader over the registry table.
func NewLoader(db core.Database, table string) (*Loader, error) {
	if err := database.ValidIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid records table: %w", err)
	}
	return &Loader{db: db, table: table, mapper: schema.NewTypeMapper()}, nil
}

// Load returns the record or core.ErrRecordNotFound.
func (l *Loader) Load(ctx context.Context, recordID int64) (*core.Record, error) {
	query := fmt.Sprintf("SELECT kind, created_at FROM %s WHERE id = ?", l.table)
	rows, err := l.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load record %d: %w", recordID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to load record %d: %w", recordID, err)
		}
		return nil, fmt.Errorf("record %d: %w", recordID, core.ErrRecordNotFound)
	}

	var kind string
	var createdAt interface{}
	if err := rows.Scan(&kind, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan record %d: %w", recordID, err)
	}

	k, err := core.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", recordID, err)
	}
	record := &core.Record{ID: recordID, Kind: k}

	converted, err := l.mapper.ConvertFromDBValue(createdAt, "DATETIME")
	if err != nil {
		return nil, fmt.Errorf("record %d has invalid created_at: %w", recordID, err)
	}
	if t, ok := converted.(time.Time); ok {
		record.CreatedAt = t
	}
	return record, nil
}
