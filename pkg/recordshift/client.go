// Package recordshift moves order and refund records between an attribute
// store and per-kind relational row tables.
package recordshift

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/recordshift/internal/client"
	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/migrate"
	"github.com/rzpsarthak13/recordshift/internal/read"
)

// Kind is a record kind.
type Kind = core.Kind

const (
	KindOrder  = core.KindOrder
	KindRefund = core.KindRefund
)

type (
	Row            = core.Row
	JournalEntry   = core.JournalEntry
	MigrateResult  = migrate.MigrateResult
	BackfillResult = migrate.BackfillResult
	VerifyReport   = migrate.VerifyReport
	ReadResult     = read.Result
)

// ParseKind parses "order" or "refund".
func ParseKind(s string) (Kind, error) {
	return core.ParseKind(s)
}

// IsStructural reports whether err aborted a whole run rather than one record.
func IsStructural(err error) bool {
	return migrate.IsStructural(err)
}

// Client is the main interface for running migrations.
//
// Typical usage:
//
//	client, _ := recordshift.NewClient(ctx, config)
//	defer client.Close()
//
//	result, err := client.MigrateBatch(ctx, recordshift.KindOrder, 0)
//	if recordshift.IsStructural(err) {
//		// the run made no progress and was aborted
//	}
type Client interface {
	// Kinds returns the kinds whose row table exists.
	Kinds() []Kind

	// CountPending returns the number of records of kind that have no row yet.
	CountPending(ctx context.Context, kind Kind) (int64, error)

	// MigrateBatch migrates every pending record of kind into its row table.
	// Records that fail are skipped for the rest of the run. A non-positive
	// batchSize uses the configured batch size.
	MigrateBatch(ctx context.Context, kind Kind, batchSize int) (*MigrateResult, error)

	// BackfillBatch restores every row of kind back into attributes.
	BackfillBatch(ctx context.Context, kind Kind, batchSize int) (*BackfillResult, error)

	// Read returns the row of a record, migrating it first if it has none.
	Read(ctx context.Context, kind Kind, recordID int64) (*ReadResult, error)

	// Verify compares the attributes of a record with its row.
	Verify(ctx context.Context, kind Kind, recordID int64) (*VerifyReport, error)

	// DrainJournal removes and returns up to max outcome entries.
	DrainJournal(ctx context.Context, max int) ([]*JournalEntry, error)

	// Close closes all connections and releases resources.
	Close() error
}

type clientWrapper struct {
	impl *client.ClientImpl
}

// NewClient connects to the configured stores and discovers the row tables.
func NewClient(ctx context.Context, config *Config) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	impl, err := client.NewClientImpl(ctx, config)
	if err != nil {
		return nil, err
	}
	return &clientWrapper{impl: impl}, nil
}

func (c *clientWrapper) Kinds() []Kind {
	return c.impl.Kinds()
}

func (c *clientWrapper) CountPending(ctx context.Context, kind Kind) (int64, error) {
	d, err := c.impl.Driver()
	if err != nil {
		return 0, err
	}
	return d.CountPending(ctx, kind)
}

func (c *clientWrapper) MigrateBatch(ctx context.Context, kind Kind, batchSize int) (*MigrateResult, error) {
	d, err := c.impl.Driver()
	if err != nil {
		return nil, err
	}
	return d.MigrateBatch(ctx, kind, c.batchSize(batchSize))
}

func (c *clientWrapper) BackfillBatch(ctx context.Context, kind Kind, batchSize int) (*BackfillResult, error) {
	d, err := c.impl.Driver()
	if err != nil {
		return nil, err
	}
	return d.BackfillBatch(ctx, kind, c.batchSize(batchSize))
}

func (c *clientWrapper) Read(ctx context.Context, kind Kind, recordID int64) (*ReadResult, error) {
	h, err := c.impl.Healer()
	if err != nil {
		return nil, err
	}
	return h.Read(ctx, kind, recordID)
}

func (c *clientWrapper) Verify(ctx context.Context, kind Kind, recordID int64) (*VerifyReport, error) {
	d, err := c.impl.Driver()
	if err != nil {
		return nil, err
	}
	return d.Verify(ctx, kind, recordID)
}

func (c *clientWrapper) DrainJournal(ctx context.Context, max int) ([]*JournalEntry, error) {
	j, err := c.impl.Journal()
	if err != nil {
		return nil, err
	}
	return j.Drain(ctx, max)
}

func (c *clientWrapper) Close() error {
	return c.impl.Close()
}

func (c *clientWrapper) batchSize(n int) int {
	if n > 0 {
		return n
	}
	return c.impl.BatchSize()
}
