// Package ksync implements the synchronization primitives of
// spec.md §4.1: a counting semaphore, an owner-tracked sleeping mutex
// lock, and a condition variable, all built strictly on top of a
// Spinlock and a WaitChannel. Spinlock and WaitChannel stand in for
// the kernel's non-sleeping lock and wchan, which spec.md lists as
// external collaborators assumed to exist; here they are implemented
// directly so the package is self-contained, using the same
// atomic-CAS style as the teacher's internal/runtime/concurrency
// primitives.
package ksync

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a non-sleeping lock: Acquire busy-waits rather than
// blocking the calling goroutine, matching the "spinlocks never block"
// rule of spec.md §5.
type Spinlock struct {
	state int32
}

// Acquire spins until the lock is held. It must never be called from a
// context that also expects to sleep while holding it.
func (s *Spinlock) Acquire() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

// Release clears the lock. Releasing an unheld spinlock is a caller bug.
func (s *Spinlock) Release() {
	atomic.StoreInt32(&s.state, 0)
}

// Held reports whether the spinlock is currently acquired. Intended for
// assertions, not for synchronization decisions.
func (s *Spinlock) Held() bool {
	return atomic.LoadInt32(&s.state) == 1
}
