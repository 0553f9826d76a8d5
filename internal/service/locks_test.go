package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitionKeys(t *testing.T) {
	assert.Equal(t, []string{"room:4", "user:1", "user:3", "user:9"}, transitionKeys(4, 9, 1, 3, 1))
	assert.Equal(t, []string{"user:2"}, transitionKeys(0, 2))
	assert.Equal(t, []string{"room:1"}, transitionKeys(1))
}

func TestKeyedLocker_ExcludesSameKey(t *testing.T) {
	k := NewKeyedLocker()
	unlock := k.Lock("room:1", "user:1")

	acquired := make(chan struct{})
	go func() {
		u := k.Lock("user:1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("key was not released")
	}
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	k := NewKeyedLocker()
	unlock := k.Lock("room:1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		k.Lock("room:2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated key blocked")
	}
}

func TestKeyedLocker_DuplicatesAndCleanup(t *testing.T) {
	k := NewKeyedLocker()
	unlock := k.Lock("a", "a", "b")
	assert.Equal(t, 2, k.Len())
	unlock()
	unlock()
	assert.Equal(t, 0, k.Len())

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer k.Lock("shared")()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.Len())
}
