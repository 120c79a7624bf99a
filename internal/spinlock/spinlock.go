// Package spinlock provides a mutual exclusion lock that spins instead of
// parking the goroutine. It is meant for critical sections of a handful of
// instructions that never block or perform I/O.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

const spinsBeforeYield = 64

// Mutex is a spin lock. The zero value is unlocked.
type Mutex struct {
	state atomic.Uint32
}

// Lock acquires the lock, spinning until it is available.
func (m *Mutex) Lock() {
	for spins := 0; ; spins++ {
		if m.state.Load() == 0 && m.state.CompareAndSwap(0, 1) {
			return
		}
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock acquires the lock if it is free.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	if !m.state.CompareAndSwap(1, 0) {
		panic("spinlock: unlock of unlocked mutex")
	}
}
