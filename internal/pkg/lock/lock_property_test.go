// Property-based tests for the keyed lock.
package lock

import (
	"errors"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

var errSentinel = errors.New("sentinel")

// TestKeyedLockMutualExclusionProperty verifies that for any set of keys and
// any number of goroutines, increments under the key's lock never race: the
// final counter for each key equals the number of increments performed on it.
func TestKeyedLockMutualExclusionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numKeys := rapid.IntRange(1, 8).Draw(rt, "numKeys")
		opsPerKey := rapid.IntRange(1, 50).Draw(rt, "opsPerKey")
		workers := rapid.IntRange(2, 8).Draw(rt, "workers")

		kl := NewKeyedLock()
		counters := make([]int, numKeys)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < numKeys; k++ {
					for i := 0; i < opsPerKey; i++ {
						kl.Lock(int64(k))
						counters[k]++
						kl.Unlock(int64(k))
					}
				}
			}()
		}
		wg.Wait()

		for k := 0; k < numKeys; k++ {
			if counters[k] != workers*opsPerKey {
				rt.Fatalf("key %d: counter = %d, want %d", k, counters[k], workers*opsPerKey)
			}
		}
	})
}

// TestKeyedLockIndependentKeys verifies that TryLock on a different key
// succeeds while another key is held.
func TestKeyedLockIndependentKeys(t *testing.T) {
	kl := NewKeyedLock()

	kl.Lock(1)
	defer kl.Unlock(1)

	if !kl.TryLock(2) {
		t.Fatal("holding key 1 must not block key 2")
	}
	kl.Unlock(2)

	if kl.TryLock(1) {
		t.Fatal("key 1 is held, TryLock should fail")
	}
}

// TestWithLockReleasesOnError verifies the lock is released even when fn
// returns an error.
func TestWithLockReleasesOnError(t *testing.T) {
	kl := NewKeyedLock()

	err := kl.WithLock(7, func() error {
		return errSentinel
	})
	if err != errSentinel {
		t.Fatalf("WithLock error = %v, want sentinel", err)
	}

	if !kl.TryLock(7) {
		t.Fatal("lock must be free after WithLock returns")
	}
	kl.Unlock(7)
}
