package app

import "sync"

// ContractLocks serializes work on a single contract between the scheduler
// and administrative calls. Locks for different contracts never contend.
type ContractLocks struct {
	mu    sync.Mutex
	locks map[int64]*contractLock
}

type contractLock struct {
	mu   sync.Mutex
	refs int
}

func NewContractLocks() *ContractLocks {
	return &ContractLocks{locks: make(map[int64]*contractLock)}
}

// Lock blocks until the contract is free and returns the matching unlock func.
func (l *ContractLocks) Lock(contractID int64) (unlock func()) {
	l.mu.Lock()
	cl, ok := l.locks[contractID]
	if !ok {
		cl = &contractLock{}
		l.locks[contractID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, contractID)
		}
		l.mu.Unlock()
	}
}

// size is the number of contracts currently locked or waited on.
func (l *ContractLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
