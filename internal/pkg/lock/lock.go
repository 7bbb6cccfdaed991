// Package lock provides keyed in-process locking. The betting and settlement
// paths take the event's lock before opening their database transaction so
// that concurrent requests for the same event queue in-process instead of
// piling up on the row lock. Correctness is still guaranteed by the database;
// this only keeps contention cheap.
package lock

import (
	"sync"
)

// keyedMutex wraps a mutex stored per key.
type keyedMutex struct {
	mu sync.Mutex
}

// KeyedLock provides per-key mutual exclusion.
type KeyedLock struct {
	locks sync.Map // map[int64]*keyedMutex
	pool  sync.Pool
}

// NewKeyedLock creates a new KeyedLock instance.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{
		pool: sync.Pool{
			New: func() any {
				return &keyedMutex{}
			},
		},
	}
}

// getLock retrieves or creates the mutex for the given key.
func (kl *KeyedLock) getLock(key int64) *keyedMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyedMutex)
	}

	newLock := kl.pool.Get().(*keyedMutex)
	actual, loaded := kl.locks.LoadOrStore(key, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		kl.pool.Put(newLock)
	}
	return actual.(*keyedMutex)
}

// Lock acquires the lock for a key.
func (kl *KeyedLock) Lock(key int64) {
	kl.getLock(key).mu.Lock()
}

// Unlock releases the lock for a key.
func (kl *KeyedLock) Unlock(key int64) {
	if v, ok := kl.locks.Load(key); ok {
		v.(*keyedMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (kl *KeyedLock) TryLock(key int64) bool {
	return kl.getLock(key).mu.TryLock()
}

// WithLock executes fn while holding the key's lock.
func (kl *KeyedLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}
