package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
)

// LifecycleHook runs when a kind is bound to, or released from, its row table.
// Hooks are called synchronously; an error from OnRegister rejects the binding.
type LifecycleHook interface {
	OnRegister(ctx context.Context, kind core.Kind, schema *core.Schema, m *mapping.Mapping) error
	OnUnregister(ctx context.Context, kind core.Kind, schema *core.Schema) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook. Nil funcs are no-ops.
type LifecycleHookFunc struct {
	OnRegisterFunc   func(ctx context.Context, kind core.Kind, schema *core.Schema, m *mapping.Mapping) error
	OnUnregisterFunc func(ctx context.Context, kind core.Kind, schema *core.Schema) error
}

// OnRegister calls OnRegisterFunc if it's not nil.
func (f LifecycleHookFunc) OnRegister(ctx context.Context, kind core.Kind, schema *core.Schema, m *mapping.Mapping) error {
	if f.OnRegisterFunc != nil {
		return f.OnRegisterFunc(ctx, kind, schema, m)
	}
	return nil
}

// OnUnregister calls OnUnregisterFunc if it's not nil.
func (f LifecycleHookFunc) OnUnregister(ctx context.Context, kind core.Kind, schema *core.Schema) error {
	if f.OnUnregisterFunc != nil {
		return f.OnUnregisterFunc(ctx, kind, schema)
	}
	return nil
}

// RequireMappedColumns rejects a row table that lacks a mapped column or the
// primary key.
func RequireMappedColumns() LifecycleHook {
	return LifecycleHookFunc{
		OnRegisterFunc: func(ctx context.Context, kind core.Kind, schema *core.Schema, m *mapping.Mapping) error {
			if schema.PrimaryKey != mapping.PrimaryKey {
				return fmt.Errorf("table %s has primary key %q, expected %q", schema.TableName, schema.PrimaryKey, mapping.PrimaryKey)
			}
			var missing []string
			for _, column := range m.Columns() {
				if _, ok := schema.Column(column); !ok {
					missing = append(missing, column)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("table %s is missing mapped columns %v", schema.TableName, missing)
			}
			return nil
		},
	}
}

// LifecycleManager holds hooks and runs them in registration order.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager(hooks ...LifecycleHook) *LifecycleManager {
	return &LifecycleManager{hooks: append([]LifecycleHook(nil), hooks...)}
}

// RegisterHook adds a hook.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteRegisterHooks runs every OnRegister hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteRegisterHooks(ctx context.Context, kind core.Kind, schema *core.Schema, m *mapping.Mapping) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnRegister(ctx, kind, schema, m); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteUnregisterHooks runs every OnUnregister hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteUnregisterHooks(ctx context.Context, kind core.Kind, schema *core.Schema) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnUnregister(ctx, kind, schema); err != nil {
			return err
		}
	}
	return nil
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
