// Package lock provides context-aware locking primitives: a single turn
// token and a set of locks keyed by id.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Turn is a mutual-exclusion token that can be waited for with a context.
// The zero value is not usable; create one with NewTurn.
type Turn struct {
	ch chan struct{}
}

// NewTurn creates a free token.
func NewTurn() *Turn {
	return &Turn{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the token is free or ctx is done.
func (t *Turn) Acquire(ctx context.Context) error {
	select {
	case t.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

// TryAcquire takes the token only if it is free.
func (t *Turn) TryAcquire() bool {
	select {
	case t.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the token. Releasing a free token panics, like sync.Mutex.
func (t *Turn) Release() {
	select {
	case <-t.ch:
	default:
		panic("lock: release of free turn")
	}
}

// Held reports whether the token is taken. It is a point-in-time answer.
func (t *Turn) Held() bool {
	return len(t.ch) == 1
}

type keyed struct {
	turn *Turn
	refs int
}

// KeyedLock holds one Turn per key. Entries are dropped once nobody holds
// or waits for them, so the set does not grow with every key ever seen.
type KeyedLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyed
}

// NewKeyedLock creates an empty lock set.
func NewKeyedLock[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{locks: make(map[K]*keyed)}
}

func (kl *KeyedLock[K]) ref(key K) *Turn {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	e, ok := kl.locks[key]
	if !ok {
		e = &keyed{turn: NewTurn()}
		kl.locks[key] = e
	}
	e.refs++
	return e.turn
}

func (kl *KeyedLock[K]) unref(key K) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	if e, ok := kl.locks[key]; ok {
		e.refs--
		if e.refs <= 0 {
			delete(kl.locks, key)
		}
	}
}

// Lock blocks until the key is free or ctx is done.
func (kl *KeyedLock[K]) Lock(ctx context.Context, key K) error {
	turn := kl.ref(key)
	if err := turn.Acquire(ctx); err != nil {
		kl.unref(key)
		return err
	}
	return nil
}

// TryLock takes the key only if it is free.
func (kl *KeyedLock[K]) TryLock(key K) bool {
	turn := kl.ref(key)
	if !turn.TryAcquire() {
		kl.unref(key)
		return false
	}
	return true
}

// Unlock releases a key taken with Lock or TryLock.
func (kl *KeyedLock[K]) Unlock(key K) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key")
	}
	e.turn.Release()
	kl.unref(key)
}

// WithLock runs fn while holding key.
func (kl *KeyedLock[K]) WithLock(ctx context.Context, key K, fn func() error) error {
	if err := kl.Lock(ctx, key); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held.
func (kl *KeyedLock[K]) IsLocked(key K) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	e, ok := kl.locks[key]
	return ok && e.turn.Held()
}

// Len returns the number of keys currently held or waited on.
func (kl *KeyedLock[K]) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
