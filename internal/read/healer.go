// Package read serves rows by record ID, migrating records that do not have
// a row yet on first access.
package read

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/migrate"
)

// ErrKindMismatch is returned when a record exists but is of another kind.
var ErrKindMismatch = errors.New("record is of a different kind")

// Result is a row read by the healer. Healed is true when the row was
// created by this read.
type Result struct {
	Row    *core.Row
	Healed bool
}

// Healer reads rows, falling back to the attribute store on a miss.
type Healer struct {
	engines map[core.Kind]*migrate.Engine
	loader  core.RecordLoader
	keys    *KeyBuilder
	group   singleflight.Group
	log     zerolog.Logger
}

// NewHealer creates a healer. namespace prefixes de-duplication keys.
func NewHealer(engines map[core.Kind]*migrate.Engine, loader core.RecordLoader, namespace string, log zerolog.Logger) (*Healer, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("at least one engine is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("record loader cannot be nil")
	}
	return &Healer{
		engines: engines,
		loader:  loader,
		keys:    NewKeyBuilder(namespace),
		log:     logger.Component(log, "healer"),
	}, nil
}

// Read returns the row for recordID. When no row exists but the record is
// known, the record is migrated without deleting its attributes and the new
// row is returned. Concurrent reads of the same record share one migration,
// which runs detached from any single caller's cancellation; a cancelled
// caller stops waiting without failing the others.
func (h *Healer) Read(ctx context.Context, kind core.Kind, recordID int64) (*Result, error) {
	engine, ok := h.engines[kind]
	if !ok {
		return nil, fmt.Errorf("no engine configured for kind %s", kind)
	}

	row, found, err := engine.Rows().Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %d: %w", kind, recordID, err)
	}
	if found {
		return &Result{Row: row}, nil
	}

	flight := h.group.DoChan(h.keys.BuildKey(kind, recordID), func() (interface{}, error) {
		return h.heal(context.WithoutCancel(ctx), engine, recordID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	result := res.Val.(*Result)
	if res.Shared {
		return &Result{Row: result.Row.Clone(), Healed: result.Healed}, nil
	}
	return result, nil
}

func (h *Healer) heal(ctx context.Context, engine *migrate.Engine, recordID int64) (*Result, error) {
	record, err := h.loader.Load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Kind != engine.Kind() {
		return nil, fmt.Errorf("record %d is a %s: %w", recordID, record.Kind, ErrKindMismatch)
	}

	if _, err := engine.MigrateToRow(ctx, recordID, false); err != nil {
		// Another writer may have inserted the row since the first read.
		row, found, getErr := engine.Rows().Get(ctx, recordID)
		if getErr == nil && found {
			h.log.Debug().Int64("record_id", recordID).Msg("Row appeared during heal, using it")
			return &Result{Row: row}, nil
		}
		return nil, err
	}

	row, found, err := engine.Rows().Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read healed record %d: %w", recordID, err)
	}
	if !found {
		return nil, fmt.Errorf("healed record %d: %w", recordID, core.ErrRowNotFound)
	}
	h.log.Info().Str("kind", engine.Kind().String()).Int64("record_id", recordID).Msg("Healed record on read")
	return &Result{Row: row, Healed: true}, nil
}
