// Package journal records per-record migration outcomes for operators and
// downstream consumers.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

var (
	// ErrClosed is returned when appending to or draining a closed journal.
	ErrClosed = errors.New("journal is closed")

	// ErrFull is returned when a bounded journal has no room left.
	ErrFull = errors.New("journal is full")

	// ErrInvalidEntry is returned for nil or incomplete entries.
	ErrInvalidEntry = errors.New("invalid journal entry")
)

const defaultDrain = 100

// ListOperations are the Redis list commands the Redis journal needs.
// kvstore.RedisAttributeStore implements them.
type ListOperations interface {
	// ListPush appends a value to the end of a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element of a list (LPOP).
	// Returns nil if the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

// New creates the journal selected by config. The attribute store is only
// used by the redis journal, which requires it to support list operations.
func New(config registry.InternalJournalConfig, attrs core.AttributeStore, log zerolog.Logger) (core.Journal, error) {
	switch config.Type {
	case "", "none":
		return Discard{}, nil
	case "memory":
		return NewMemoryJournal(config.BufferSize), nil
	case "redis":
		ops, ok := attrs.(ListOperations)
		if !ok {
			return nil, fmt.Errorf("redis journal requires an attribute store with list operations, got %T", attrs)
		}
		return NewRedisJournal(ops, config.RedisKey), nil
	case "kafka":
		return NewKafkaJournal(config.KafkaConfig, log)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", config.Type)
	}
}

func validate(entry *core.JournalEntry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if entry.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidEntry)
	}
	if entry.Outcome == "" {
		return fmt.Errorf("%w: outcome is required", ErrInvalidEntry)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return nil
}

// Discard is a journal that drops every entry.
type Discard struct{}

func (Discard) Append(ctx context.Context, entry *core.JournalEntry) error { return nil }

func (Discard) Drain(ctx context.Context, max int) ([]*core.JournalEntry, error) { return nil, nil }

func (Discard) Size() int { return 0 }

func (Discard) Close() error { return nil }
