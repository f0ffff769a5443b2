package wallet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("owner-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	unlockA := km.Lock("a")
	released := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(released)
	}()

	// Key "b" must not wait on key "a".
	<-released
	unlockA()
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("a")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}
