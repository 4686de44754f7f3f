// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"context"
	"fmt"
	"sync"
)

// ComputeFunc produces the value for a key. The context it receives is
// detached from the cancellation of the caller that started it, since
// other callers may be waiting on the same result.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// call is one in-flight computation.
type call[V any] struct {
	done    chan struct{}
	value   V
	err     error
	waiters int
}

// Group deduplicates concurrent computations by key. The zero value is
// ready to use. A Group must not be copied after first use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// Do returns the result of compute for key. If a computation for key
// is already running, Do waits for it instead of starting another.
//
// If ctx is cancelled while waiting, Do returns ctx.Err() immediately;
// the computation keeps running for the remaining waiters.
func (g *Group[V]) Do(ctx context.Context, key string, compute ComputeFunc[V]) (V, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[V])
	}
	c, running := g.calls[key]
	if running {
		c.waiters++
	} else {
		c = &call[V]{done: make(chan struct{}), waiters: 1}
		g.calls[key] = c
	}
	g.mu.Unlock()

	if !running {
		go g.run(context.WithoutCancel(ctx), key, c, compute)
	}

	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// run executes compute and publishes its result. A panic in compute is
// converted into an error delivered to every waiter.
func (g *Group[V]) run(ctx context.Context, key string, c *call[V], compute ComputeFunc[V]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.err = fmt.Errorf("dedup: computation for %q panicked: %v", key, recovered)
		}
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(c.done)
	}()
	c.value, c.err = compute(ctx)
}

// Waiting returns the number of callers that have attached to the
// in-flight computation for key, or zero if none is running.
func (g *Group[V]) Waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c.waiters
	}
	return 0
}
