package service

import (
	"fmt"
	"slices"
	"sync"
)

// KeyedLocker hands out one mutex per key. Entries are reference counted and
// dropped once no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker returns an empty lock table.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock acquires every key in the order given, skipping duplicates, and
// returns a function that releases them in reverse order.
func (k *KeyedLocker) Lock(keys ...string) (unlock func()) {
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if slices.Contains(held, key) {
			continue
		}
		k.acquire(key).mu.Lock()
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				k.release(held[i])
			}
		})
	}
}

// Len reports how many keys are currently tracked.
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedLocker) acquire(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedLocker) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		return
	}
	l.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func roomLockKey(id uint) string {
	return fmt.Sprintf("room:%d", id)
}

func userLockKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// transitionKeys orders a room key before user keys, users ascending.
func transitionKeys(roomID uint, userIDs ...uint) []string {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	keys := make([]string, 0, len(ids)+1)
	if roomID != 0 {
		keys = append(keys, roomLockKey(roomID))
	}
	for _, id := range slices.Compact(ids) {
		keys = append(keys, userLockKey(id))
	}
	return keys
}
