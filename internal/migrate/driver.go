package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/iterator"
	"github.com/rzpsarthak13/recordshift/internal/logger"
)

// DriverConfig controls batch runs.
type DriverConfig struct {
	// DeleteSource removes migrated attribute keys after each row insert.
	DeleteSource bool

	// DeleteRowsOnBackfill removes each row after it is restored.
	DeleteRowsOnBackfill bool

	// RatePerSecond bounds per-record migrations. Zero means unlimited.
	RatePerSecond int

	// MaxRecords stops a run after this many records were attempted. Zero means no limit.
	MaxRecords int
}

// MigrateResult summarises a MigrateBatch run.
type MigrateResult struct {
	Kind           core.Kind
	PendingBefore  int64
	Processed      int
	Skipped        []int64
	PartialCleanup []int64
	Truncated      bool
}

// Driver runs engines over every pending record of a kind.
type Driver struct {
	engines    map[core.Kind]*Engine
	candidates core.CandidateSource
	loader     core.RecordLoader
	config     DriverConfig
	limiter    *rate.Limiter
	journal    core.Journal
	log        zerolog.Logger
}

// NewDriver creates a driver. engines must hold one engine per kind that
// will be migrated.
func NewDriver(engines map[core.Kind]*Engine, candidates core.CandidateSource, loader core.RecordLoader, config DriverConfig, log zerolog.Logger) (*Driver, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("at least one engine is required")
	}
	if candidates == nil {
		return nil, fmt.Errorf("candidate source cannot be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("record loader cannot be nil")
	}
	if config.RatePerSecond < 0 {
		return nil, fmt.Errorf("rate per second cannot be negative")
	}
	if config.MaxRecords < 0 {
		return nil, fmt.Errorf("max records cannot be negative")
	}
	for kind, engine := range engines {
		if engine == nil || engine.Kind() != kind {
			return nil, fmt.Errorf("engine registered for %s does not handle that kind", kind)
		}
	}

	d := &Driver{
		engines:    engines,
		candidates: candidates,
		loader:     loader,
		config:     config,
		log:        logger.Component(log, "driver"),
	}
	if config.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), 1)
	}
	return d, nil
}

// SetJournal makes the driver append every per-record outcome to j.
func (d *Driver) SetJournal(j core.Journal) {
	d.journal = j
}

// Engine returns the engine for kind.
func (d *Driver) Engine(kind core.Kind) (*Engine, error) {
	engine, ok := d.engines[kind]
	if !ok {
		return nil, fmt.Errorf("no engine configured for kind %s", kind)
	}
	return engine, nil
}

// CountPending returns the number of records of kind still without a row.
func (d *Driver) CountPending(ctx context.Context, kind core.Kind) (int64, error) {
	if _, err := d.Engine(kind); err != nil {
		return 0, err
	}
	return d.candidates.CountPending(ctx, kind)
}

// MigrateBatch migrates every pending record of kind, batchSize IDs at a
// time. Records that fail are skipped for the rest of the run and listed in
// the result; they never stop the run. The run aborts with a StructuralError
// when the candidate query stops making progress.
func (d *Driver) MigrateBatch(ctx context.Context, kind core.Kind, batchSize int) (*MigrateResult, error) {
	engine, err := d.Engine(kind)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = iterator.DefaultBatchSize
	}

	result := &MigrateResult{Kind: kind}
	result.PendingBefore, err = d.candidates.CountPending(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending %s records: %w", kind, err)
	}
	if result.PendingBefore == 0 {
		d.log.Info().Str("kind", kind.String()).Msg("Nothing to migrate")
		return result, nil
	}

	d.log.Info().Str("kind", kind.String()).Int64("pending", result.PendingBefore).
		Int("batch_size", batchSize).Msg("Starting migration")

	batch, err := d.candidates.PendingIDs(ctx, kind, batchSize, nil)
	if err != nil {
		return result, fmt.Errorf("failed to fetch pending %s records: %w", kind, err)
	}
	if len(batch) == 0 {
		err := &StructuralError{Kind: kind, Err: ErrUnexpectedEmptyBatch}
		d.log.Error().Err(err).Int64("pending", result.PendingBefore).Msg("Migration aborted")
		return result, err
	}

	skipped := make(map[int64]bool)
	for {
		work := make([]int64, 0, len(batch))
		for _, id := range batch {
			if !skipped[id] {
				work = append(work, id)
			}
		}
		if len(work) == 0 {
			break
		}

		for _, id := range work {
			if d.limitReached(result.Processed + len(result.Skipped)) {
				result.Truncated = true
				d.log.Info().Str("kind", kind.String()).Int("max_records", d.config.MaxRecords).
					Msg("Record limit reached, stopping run")
				return result, nil
			}
			if err := d.throttle(ctx); err != nil {
				return result, err
			}

			if err := d.migrateOne(ctx, engine, id, result); err != nil {
				skipped[id] = true
				result.Skipped = append(result.Skipped, id)
				d.log.Warn().Err(err).Str("kind", kind.String()).Int64("record_id", id).Msg("Skipping record")
				d.record(ctx, kind, id, core.DirectionToRow, core.OutcomeSkipped, err)
			}
		}

		next, err := d.candidates.PendingIDs(ctx, kind, batchSize, result.Skipped)
		if err != nil {
			return result, fmt.Errorf("failed to fetch pending %s records: %w", kind, err)
		}
		if len(next) > 0 && sameIDs(next, batch) {
			err := &StructuralError{Kind: kind, Batch: next, Err: ErrNoProgress}
			d.log.Error().Err(err).Int("processed", result.Processed).Msg("Migration aborted")
			return result, err
		}
		batch = next
	}

	d.log.Info().Str("kind", kind.String()).Int("processed", result.Processed).
		Int("skipped", len(result.Skipped)).Int("partial_cleanup", len(result.PartialCleanup)).
		Msg("Migration finished")
	return result, nil
}

// migrateOne returns an error only when the record must be skipped.
func (d *Driver) migrateOne(ctx context.Context, engine *Engine, id int64, result *MigrateResult) error {
	record, err := d.loader.Load(ctx, id)
	if err != nil {
		return err
	}
	if record.Kind != engine.Kind() {
		return fmt.Errorf("record %d is a %s, not a %s", id, record.Kind, engine.Kind())
	}

	outcome, err := engine.MigrateToRow(ctx, id, d.config.DeleteSource)
	if err != nil {
		return err
	}

	result.Processed++
	if outcome.Partial() {
		result.PartialCleanup = append(result.PartialCleanup, id)
		d.record(ctx, engine.Kind(), id, core.DirectionToRow, core.OutcomePartial, outcome.CleanupErr)
		return nil
	}
	d.record(ctx, engine.Kind(), id, core.DirectionToRow, core.OutcomeMigrated, nil)
	return nil
}

func (d *Driver) limitReached(attempted int) bool {
	return d.config.MaxRecords > 0 && attempted >= d.config.MaxRecords
}

func (d *Driver) throttle(ctx context.Context) error {
	if d.limiter == nil {
		return ctx.Err()
	}
	return d.limiter.Wait(ctx)
}

// record appends to the journal. Journal failures are logged, not returned.
func (d *Driver) record(ctx context.Context, kind core.Kind, id int64, direction core.Direction, outcome core.Outcome, cause error) {
	if d.journal == nil {
		return
	}
	entry := &core.JournalEntry{
		Kind:      kind,
		RecordID:  id,
		Direction: direction,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := d.journal.Append(ctx, entry); err != nil {
		d.log.Warn().Err(err).Int64("record_id", id).Str("outcome", string(outcome)).Msg("Failed to journal outcome")
	}
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
