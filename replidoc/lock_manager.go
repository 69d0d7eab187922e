package replidoc

import (
	"sync"
)

// operationType defines whether an operation is a read or a write.
// The distinction lets the lockManager use read locks (RLock) for concurrent
// reads and exclusive write locks for mutations.
type operationType int

const (
	// readOperation indicates an operation that only reads document state.
	// Multiple read operations can proceed concurrently.
	readOperation operationType = iota

	// writeOperation indicates an operation that mutates document state.
	// Write operations are exclusive.
	writeOperation
)

// lockManager provides centralized lock management for the document. Every
// container handle routes its operations through the owning document's lock
// manager, so any two operations, local or merge, are linearized before the
// diff pipeline computes their delta. Centralizing the strategy here keeps
// lock/unlock pairing in one place and prevents lock/unlock/relock patterns.
type lockManager struct {
	mu *sync.RWMutex
}

// newLockManager creates a new lock manager instance.
func newLockManager() *lockManager {
	return &lockManager{
		mu: &sync.RWMutex{},
	}
}

// execute runs a function with appropriate locking based on operation type.
// The lock is released via defer, so it is cleaned up even if fn panics.
func (lm *lockManager) execute(opType operationType, fn func() error) error {
	switch opType {
	case readOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case writeOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}

// executeWithResult runs a function with appropriate locking and returns its
// result. Identical to execute but for functions producing a value.
func (lm *lockManager) executeWithResult(opType operationType, fn func() (interface{}, error)) (interface{}, error) {
	switch opType {
	case readOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case writeOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}
