// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"context"
	"sync"
)

// Memo retains successful results for the lifetime of the process.
// Concurrent misses for the same key share one computation through an
// embedded Group. Errors are returned to every waiter and forgotten.
type Memo[V any] struct {
	group Group[V]

	mu     sync.RWMutex
	values map[string]V
}

// Get returns the retained value for key, computing it on a miss.
func (m *Memo[V]) Get(ctx context.Context, key string, compute ComputeFunc[V]) (V, error) {
	m.mu.RLock()
	value, ok := m.values[key]
	m.mu.RUnlock()
	if ok {
		return value, nil
	}

	return m.group.Do(ctx, key, func(ctx context.Context) (V, error) {
		// A caller that missed just before a previous computation
		// stored its value starts a new flight; return the stored
		// value instead of recomputing.
		m.mu.RLock()
		value, ok := m.values[key]
		m.mu.RUnlock()
		if ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		m.mu.Lock()
		if m.values == nil {
			m.values = make(map[string]V)
		}
		m.values[key] = value
		m.mu.Unlock()
		return value, nil
	})
}

// Forget drops the retained value for key.
func (m *Memo[V]) Forget(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}
