package migrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/iterator"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
)

// BackfillResult summarises a BackfillBatch run.
type BackfillResult struct {
	Kind      core.Kind
	Processed int
	Failed    []int64
	Truncated bool
}

// BackfillBatch restores every row of kind into the attribute store, paging
// through the row table in ID order. A failed row is recorded and the run
// continues. With DeleteRowsOnBackfill each restored row is deleted, which
// the iterator compensates for when paging.
func (d *Driver) BackfillBatch(ctx context.Context, kind core.Kind, batchSize int) (*BackfillResult, error) {
	engine, err := d.Engine(kind)
	if err != nil {
		return nil, err
	}

	rows := engine.Rows()
	pk := rows.Schema().PrimaryKey
	if pk == "" {
		pk = mapping.PrimaryKey
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC", pk, rows.Table(), pk)
	it := iterator.New(rows, query, batchSize)

	result := &BackfillResult{Kind: kind}
	d.log.Info().Str("kind", kind.String()).Str("table", rows.Table()).
		Bool("delete_rows", d.config.DeleteRowsOnBackfill).Msg("Starting backfill")

	for {
		ok, err := it.HasCurrent(ctx)
		if err != nil {
			d.log.Error().Err(err).Int("processed", result.Processed).Msg("Backfill aborted")
			return result, err
		}
		if !ok {
			break
		}
		if d.limitReached(result.Processed + len(result.Failed)) {
			result.Truncated = true
			break
		}

		value, _ := it.Current().Get(pk)
		id, err := recordID(value)
		if err != nil {
			return result, fmt.Errorf("row at position %d of %s: %w", it.Position(), rows.Table(), err)
		}
		if err := d.throttle(ctx); err != nil {
			return result, err
		}

		if err := engine.RestoreToAttributes(ctx, id, d.config.DeleteRowsOnBackfill); err != nil {
			result.Failed = append(result.Failed, id)
			d.log.Warn().Err(err).Str("kind", kind.String()).Int64("record_id", id).Msg("Failed to restore record")
			d.record(ctx, kind, id, core.DirectionToAttributes, core.OutcomeFailed, err)
		} else {
			result.Processed++
			d.record(ctx, kind, id, core.DirectionToAttributes, core.OutcomeRestored, nil)
		}
		it.Advance()
	}

	d.log.Info().Str("kind", kind.String()).Int("processed", result.Processed).
		Int("failed", len(result.Failed)).Msg("Backfill finished")
	return result, nil
}

func recordID(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported record id type %T", value)
	}
}
