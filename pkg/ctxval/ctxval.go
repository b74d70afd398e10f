// Package ctxval carries values that are set after a context was handed
// down, so outer middleware can read what inner handlers recorded.
package ctxval

import (
	"context"
	"sync"
)

type bagKey struct{}

type bag struct {
	mu     sync.RWMutex
	values map[any]any
}

// Wrap attaches a mutable bag to ctx. Wrapping twice keeps the first bag.
func Wrap(ctx context.Context) context.Context {
	if _, ok := ctx.Value(bagKey{}).(*bag); ok {
		return ctx
	}
	return context.WithValue(ctx, bagKey{}, &bag{values: make(map[any]any)})
}

// Set is a no-op on a context that was never wrapped.
func Set[K comparable, V any](ctx context.Context, k K, v V) {
	b, ok := ctx.Value(bagKey{}).(*bag)
	if !ok {
		return
	}
	b.mu.Lock()
	b.values[k] = v
	b.mu.Unlock()
}

// Get looks in the bag first, then in the regular context chain.
func Get[K comparable, V any](ctx context.Context, k K) (V, bool) {
	var raw any
	if b, ok := ctx.Value(bagKey{}).(*bag); ok {
		b.mu.RLock()
		raw = b.values[k]
		b.mu.RUnlock()
	}
	if raw == nil {
		raw = ctx.Value(k)
	}
	v, ok := raw.(V)
	return v, ok
}
