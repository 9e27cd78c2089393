// Package syncutil wraps the standard sync primitives with assertion hooks
// that document locking invariants without forcing every call site to reach
// for sync directly. The hooks are no-ops in every build; nothing verifies
// them.
package syncutil

import "sync"

// Mutex is a mutual exclusion lock. The embedded sync.Mutex does the actual
// work; AssertHeld exists so call sites can state a locking invariant in
// code even though the plain build does not check it.
type Mutex struct {
	sync.Mutex
}

// AssertHeld documents that the caller expects this mutex to already be
// held. It is a no-op and does not verify the claim.
func (m *Mutex) AssertHeld() {}

// RWMutex is a reader/writer mutual exclusion lock, wrapped for the same
// reason as Mutex.
type RWMutex struct {
	sync.RWMutex
}

// AssertHeld documents that the caller expects the write lock to be held.
func (rw *RWMutex) AssertHeld() {}

// AssertRHeld documents that the caller expects at least the read lock to
// be held.
func (rw *RWMutex) AssertRHeld() {}
