package read

import (
	"fmt"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// KeyBuilder builds de-duplication keys in the format {namespace}:{kind}:{id}.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a new key builder.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// BuildKey constructs the key for a record.
func (kb *KeyBuilder) BuildKey(kind core.Kind, recordID int64) string {
	if kb.namespace != "" {
		return fmt.Sprintf("%s:%s:%d", kb.namespace, kind, recordID)
	}
	return fmt.Sprintf("%s:%d", kind, recordID)
}
