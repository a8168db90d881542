package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
)

// KindMetadata binds a record kind to its row table.
type KindMetadata struct {
	Kind         core.Kind
	TableName    string
	Schema       *core.Schema
	Mapping      *mapping.Mapping
	RegisteredAt time.Time
}

// KindRegistry tracks which kinds are ready to migrate. It is safe for
// concurrent use.
type KindRegistry struct {
	mu        sync.RWMutex
	kinds     map[core.Kind]*KindMetadata
	configMgr *ConfigManager
	lifecycle *LifecycleManager
}

// NewKindRegistry creates a registry. A nil lifecycle manager runs no hooks.
func NewKindRegistry(configMgr *ConfigManager, lifecycle *LifecycleManager) *KindRegistry {
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	return &KindRegistry{
		kinds:     make(map[core.Kind]*KindMetadata),
		configMgr: configMgr,
		lifecycle: lifecycle,
	}
}

// Register binds kind to the schema of its configured table. The schema's
// table must be the one configured for the kind, and every register hook
// must accept it. Registering a kind again replaces the binding.
func (kr *KindRegistry) Register(ctx context.Context, kind core.Kind, schema *core.Schema) error {
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	m, err := mapping.For(kind)
	if err != nil {
		return err
	}
	if table := kr.configMgr.TableFor(kind); schema.TableName != table {
		return fmt.Errorf("schema table %q does not match table %q configured for %s", schema.TableName, table, kind)
	}

	if err := kr.lifecycle.ExecuteRegisterHooks(ctx, kind, schema, m); err != nil {
		return fmt.Errorf("register hook failed for %s: %w", kind, err)
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.kinds[kind] = &KindMetadata{
		Kind:         kind,
		TableName:    schema.TableName,
		Schema:       schema,
		Mapping:      m,
		RegisteredAt: time.Now(),
	}
	return nil
}

// Get returns a copy of the metadata for kind.
func (kr *KindRegistry) Get(kind core.Kind) (*KindMetadata, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	metadata, exists := kr.kinds[kind]
	if !exists {
		return nil, fmt.Errorf("kind %q is not registered", kind)
	}
	copied := *metadata
	return &copied, nil
}

// Unregister removes kind after running the unregister hooks.
func (kr *KindRegistry) Unregister(ctx context.Context, kind core.Kind) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	metadata, exists := kr.kinds[kind]
	if !exists {
		return fmt.Errorf("kind %q is not registered", kind)
	}
	if err := kr.lifecycle.ExecuteUnregisterHooks(ctx, kind, metadata.Schema); err != nil {
		return fmt.Errorf("unregister hook failed for %s: %w", kind, err)
	}
	delete(kr.kinds, kind)
	return nil
}

// Kinds returns the registered kinds in sorted order.
func (kr *KindRegistry) Kinds() []core.Kind {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	kinds := make([]core.Kind, 0, len(kr.kinds))
	for kind := range kr.kinds {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Count returns the number of registered kinds.
func (kr *KindRegistry) Count() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return len(kr.kinds)
}
