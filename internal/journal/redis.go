package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// RedisJournal stores entries as JSON in a Redis list.
type RedisJournal struct {
	ops    ListOperations
	key    string
	mu     sync.RWMutex
	closed bool
}

// NewRedisJournal creates a journal on the list at key.
func NewRedisJournal(ops ListOperations, key string) *RedisJournal {
	if key == "" {
		key = "recordshift:journal"
	}
	return &RedisJournal{ops: ops, key: key}
}

// Append pushes the entry to the tail of the list.
func (j *RedisJournal) Append(ctx context.Context, entry *core.JournalEntry) error {
	if j.isClosed() {
		return ErrClosed
	}
	if err := validate(entry); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if err := j.ops.ListPush(ctx, j.key, data); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Drain pops up to max entries from the head of the list. Entries that fail
// to decode are dropped.
func (j *RedisJournal) Drain(ctx context.Context, max int) ([]*core.JournalEntry, error) {
	if j.isClosed() {
		return nil, ErrClosed
	}
	if max <= 0 {
		max = defaultDrain
	}

	out := make([]*core.JournalEntry, 0, max)
	for i := 0; i < max; i++ {
		data, err := j.ops.ListPop(ctx, j.key)
		if err != nil {
			return out, fmt.Errorf("failed to drain journal: %w", err)
		}
		if data == nil {
			break
		}
		var entry core.JournalEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}

// Size returns the list length, or 0 if it cannot be read.
func (j *RedisJournal) Size() int {
	if j.isClosed() {
		return 0
	}
	n, err := j.ops.ListLength(context.Background(), j.key)
	if err != nil {
		return 0
	}
	return int(n)
}

// Close marks the journal closed. The Redis client belongs to the attribute store.
func (j *RedisJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *RedisJournal) isClosed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.closed
}
