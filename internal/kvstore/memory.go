package kvstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// MemoryAttributeStore is a map-backed attribute store for tests and dry runs.
type MemoryAttributeStore struct {
	mu      sync.RWMutex
	records map[int64]map[string]string
	closed  bool
}

// NewMemoryAttributeStore creates an empty in-memory store.
func NewMemoryAttributeStore() *MemoryAttributeStore {
	return &MemoryAttributeStore{
		records: make(map[int64]map[string]string),
	}
}

// GetAll returns a copy of every attribute of the record.
func (m *MemoryAttributeStore) GetAll(ctx context.Context, recordID int64) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("attribute store is closed")
	}

	attrs := make(map[string]string, len(m.records[recordID]))
	for k, v := range m.records[recordID] {
		attrs[k] = v
	}
	return attrs, nil
}

// Get returns one attribute.
func (m *MemoryAttributeStore) Get(ctx context.Context, recordID int64, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, fmt.Errorf("attribute store is closed")
	}

	v, ok := m.records[recordID][key]
	return v, ok, nil
}

// Set creates or replaces an attribute.
func (m *MemoryAttributeStore) Set(ctx context.Context, recordID int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("attribute store is closed")
	}

	attrs, ok := m.records[recordID]
	if !ok {
		attrs = make(map[string]string)
		m.records[recordID] = attrs
	}
	attrs[key] = value
	return nil
}

// Delete removes an attribute.
func (m *MemoryAttributeStore) Delete(ctx context.Context, recordID int64, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, fmt.Errorf("attribute store is closed")
	}

	attrs, ok := m.records[recordID]
	if !ok {
		return false, nil
	}
	if _, ok := attrs[key]; !ok {
		return false, nil
	}
	delete(attrs, key)
	if len(attrs) == 0 {
		delete(m.records, recordID)
	}
	return true, nil
}

// Close marks the store closed.
func (m *MemoryAttributeStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryAttributeStoreFactory creates in-memory stores.
type MemoryAttributeStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryAttributeStoreFactory) Type() string {
	return "memory"
}

// Validate accepts any configuration.
func (f *MemoryAttributeStoreFactory) Validate(config registry.InternalAttributeStoreConfig) error {
	return nil
}

// Create returns a fresh empty store.
func (f *MemoryAttributeStoreFactory) Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error) {
	return NewMemoryAttributeStore(), nil
}

func init() {
	register(&MemoryAttributeStoreFactory{})
}
