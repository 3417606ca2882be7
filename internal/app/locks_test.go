package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContractLocks_SerializesSameContract(t *testing.T) {
	locks := NewContractLocks()
	unlock := locks.Lock(42)

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock(42)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same contract must wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock was never granted")
	}
}

func TestContractLocks_IndependentContracts(t *testing.T) {
	locks := NewContractLocks()
	unlock := locks.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock(2)()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another contract must not block")
	}
}

func TestContractLocks_ReleasesEntries(t *testing.T) {
	locks := NewContractLocks()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			locks.Lock(id % 3)()
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, locks.size())
}
