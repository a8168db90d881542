package core

import (
	"context"
	"time"
)

// Direction is the direction data moved for a journal entry.
type Direction string

const (
	// DirectionToRow moves attributes into a row.
	DirectionToRow Direction = "to_row"

	// DirectionToAttributes restores a row back into attributes.
	DirectionToAttributes Direction = "to_attributes"
)

// Outcome is the result of processing a single record.
type Outcome string

const (
	// OutcomeMigrated means the row was written and any cleanup succeeded.
	OutcomeMigrated Outcome = "migrated"

	// OutcomePartial means the row was written but cleanup of the source failed.
	OutcomePartial Outcome = "partial"

	// OutcomeRestored means the attributes were written from the row.
	OutcomeRestored Outcome = "restored"

	// OutcomeSkipped means the record failed and was skipped for the rest of the run.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means a restore failed.
	OutcomeFailed Outcome = "failed"
)

// JournalEntry records what happened to one record during a run.
type JournalEntry struct {
	Kind      Kind      `json:"kind"`
	RecordID  int64     `json:"record_id"`
	Direction Direction `json:"direction"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is an append-only log of per-record outcomes.
type Journal interface {
	// Append adds an entry to the journal.
	Append(ctx context.Context, entry *JournalEntry) error

	// Drain removes and returns up to max entries in append order.
	// Returns an empty slice if the journal is empty.
	Drain(ctx context.Context, max int) ([]*JournalEntry, error)

	// Size returns the current number of undrained entries.
	Size() int

	// Close closes the journal and releases resources.
	Close() error
}
