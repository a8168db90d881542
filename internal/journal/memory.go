package journal

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// MemoryJournal keeps entries in a bounded channel. Entries are lost when the
// process exits.
type MemoryJournal struct {
	entries chan *core.JournalEntry
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryJournal creates a journal holding up to bufferSize undrained entries.
func NewMemoryJournal(bufferSize int) *MemoryJournal {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryJournal{entries: make(chan *core.JournalEntry, bufferSize)}
}

// Append adds an entry, failing with ErrFull instead of blocking.
func (j *MemoryJournal) Append(ctx context.Context, entry *core.JournalEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}

	select {
	case j.entries <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

// Drain removes up to max entries in append order.
func (j *MemoryJournal) Drain(ctx context.Context, max int) ([]*core.JournalEntry, error) {
	if max <= 0 {
		max = defaultDrain
	}

	out := make([]*core.JournalEntry, 0, max)
	for i := 0; i < max; i++ {
		select {
		case entry, ok := <-j.entries:
			if !ok {
				return out, nil
			}
			out = append(out, entry)
		case <-ctx.Done():
			return out, ctx.Err()
		default:
			return out, nil
		}
	}
	return out, nil
}

// Size returns the number of undrained entries.
func (j *MemoryJournal) Size() int {
	return len(j.entries)
}

// Close stops further appends. Remaining entries can still be drained.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	close(j.entries)
	return nil
}
