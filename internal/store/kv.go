package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("store: not found")

// KV is the durable key-value contract shared by every execution context.
// Values are opaque bytes; callers store JSON. Every successful Set or
// Delete is reported to all active watchers.
// Implementations must be safe for concurrent use by multiple goroutines.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
}

// Change describes one write. OldValue is nil when the key did not exist;
// NewValue is nil for deletions.
type Change struct {
	Key      string `json:"key"`
	OldValue []byte `json:"old_value,omitempty"`
	NewValue []byte `json:"new_value,omitempty"`
}

// Deleted reports whether the change removed the key.
func (c Change) Deleted() bool { return c.NewValue == nil }
