package store

import (
	"context"
	"sync"
)

// Memory is a process-local KV with the same change semantics as Bolt.
// Nothing survives a restart.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
	hub  *Hub
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), hub: NewHub()}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.data[key]
	m.data[key] = append([]byte{}, value...)
	m.hub.Publish(Change{Key: key, OldValue: old, NewValue: append([]byte{}, value...)})
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[key]
	if !ok {
		return nil
	}
	delete(m.data, key)
	m.hub.Publish(Change{Key: key, OldValue: old})
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	return m.hub.Subscribe(ctx), nil
}

// Close is a no-op so Memory can stand in wherever a closable backend is expected.
func (m *Memory) Close() error { return nil }
