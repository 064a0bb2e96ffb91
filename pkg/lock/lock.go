// Package lock serializes allocation decisions on string keys, typically the
// root units of the reservation unit hierarchy
package lock

import (
	"context"
	"slices"
	"sync"
)

// Locker acquires every key or none. The returned release function frees all
// acquired keys and is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// normalizeKeys sorts and de-duplicates keys so concurrent callers always
// acquire in the same order
func normalizeKeys(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// Local is an in-process Locker
type Local struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{keys: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

func (l *Local) Acquire(ctx context.Context, keys ...string) (func(), error) {
	held := make([]chan struct{}, 0, len(keys))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range normalizeKeys(keys) {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			releaseHeld()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}
