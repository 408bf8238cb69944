// Package persist provides storage backends for interview sessions.
package persist

import (
	"context"
	"sync"
)

// Cache is a minimal key/value backend.
type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type MemoryCache[S any] struct {
	mu sync.RWMutex
	m  map[string]S
}

func NewMemoryCache[S any]() *MemoryCache[S] {
	return &MemoryCache[S]{m: map[string]S{}}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	m.mu.Lock()
	m.m[key] = val
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	m.mu.RLock()
	val, ok := m.m[key]
	m.mu.RUnlock()
	return val, ok, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.m[key]
	m.mu.RUnlock()
	return ok, nil
}

// Namespace prefixes every key with a fixed namespace.
type Namespace[S any] struct {
	core      Cache[S]
	namespace string
}

func NewNamespace[S any](core Cache[S], namespace string) Namespace[S] {
	return Namespace[S]{core: core, namespace: namespace}
}

func (c Namespace[S]) key(key string) string {
	return c.namespace + ":" + key
}

func (c Namespace[S]) Set(ctx context.Context, key string, val S) error {
	return c.core.Set(ctx, c.key(key), val)
}

func (c Namespace[S]) Get(ctx context.Context, key string) (S, bool, error) {
	return c.core.Get(ctx, c.key(key))
}

func (c Namespace[S]) Del(ctx context.Context, key string) error {
	return c.core.Del(ctx, c.key(key))
}

func (c Namespace[S]) Exists(ctx context.Context, key string) (bool, error) {
	return c.core.Exists(ctx, c.key(key))
}
