package sharedptr

import (
	"sync/atomic"
	"unsafe"
)

// lockedNilAnchor stands in for a nil pointer while the lock is held:
// a locked nil is &lockedNilAnchor + 1. The anchor is two bytes wide and
// two-byte aligned, so the tagged address stays inside the object.
var lockedNilAnchor uint16

// SpinPointer is a *T whose lowest address bit doubles as a spin lock.
// The critical section it guards is exactly "read or replace this
// pointer": holders must not allocate, block or call code that may panic
// while locked, so waiters only ever spin for a handful of instructions
// unless the holder is descheduled.
//
// The tagged pointer remains visible to the garbage collector as an
// interior pointer, which is why T must be at least two bytes in size and
// two-byte aligned.
//
// The zero value is an unlocked nil pointer. A SpinPointer must not be
// copied after first use.
//
// Partially references:
// [https://github.com/facebook/folly/blob/main/folly/synchronization/PicoSpinLock.h]
type SpinPointer[T any] struct {
	_ [0]*T
	_ noCopy
	p unsafe.Pointer
}

func checkSpinPointerType[T any]() {
	//goland:noinspection ALL
	if enableContractChecks {
		var zero T
		if unsafe.Alignof(zero) < 2 || unsafe.Sizeof(zero) < 2 {
			panic("sharedptr: SpinPointer element must be at least 2 bytes and 2-byte aligned")
		}
	}
}

//go:nosplit
func isLockedPtr(p unsafe.Pointer) bool {
	return uintptr(p)&1 != 0
}

func lockedPtr(p unsafe.Pointer) unsafe.Pointer {
	if p == nil {
		return unsafe.Add(unsafe.Pointer(&lockedNilAnchor), 1)
	}
	return unsafe.Add(p, 1)
}

func unlockedPtr(p unsafe.Pointer) unsafe.Pointer {
	if !isLockedPtr(p) {
		return p
	}
	p = unsafe.Add(p, -1)
	if p == unsafe.Pointer(&lockedNilAnchor) {
		return nil
	}
	return p
}

// Lock spins until it acquires the lock and returns the stored pointer.
func (s *SpinPointer[T]) Lock(order MemoryOrder) *T {
	checkRMWOrder(order)
	cur := atomic.LoadPointer(&s.p)
	if !isLockedPtr(cur) && atomic.CompareAndSwapPointer(&s.p, cur, lockedPtr(cur)) {
		return (*T)(cur)
	}
	return s.lockSlow()
}

func (s *SpinPointer[T]) lockSlow() *T {
	checkSpinPointerType[T]()
	var sp spinner
	for {
		cur := atomic.LoadPointer(&s.p)
		if !isLockedPtr(cur) {
			if atomic.CompareAndSwapPointer(&s.p, cur, lockedPtr(cur)) {
				return (*T)(cur)
			}
			continue
		}
		sp.wait()
	}
}

// TryLock acquires the lock if it is free. On success it returns the
// stored pointer and true.
func (s *SpinPointer[T]) TryLock(order MemoryOrder) (*T, bool) {
	checkRMWOrder(order)
	cur := atomic.LoadPointer(&s.p)
	if isLockedPtr(cur) || !atomic.CompareAndSwapPointer(&s.p, cur, lockedPtr(cur)) {
		return nil, false
	}
	return (*T)(cur), true
}

// Unlock releases the lock, keeping the stored pointer.
func (s *SpinPointer[T]) Unlock(order MemoryOrder) {
	checkStoreOrder(order)
	cur := atomic.LoadPointer(&s.p)
	assert(isLockedPtr(cur), "unlock of an unlocked SpinPointer")
	atomic.StorePointer(&s.p, unlockedPtr(cur))
}

// SwapUnlock replaces the stored pointer and releases the lock in a
// single store.
func (s *SpinPointer[T]) SwapUnlock(v *T, order MemoryOrder) {
	checkStoreOrder(order)
	assert(isLockedPtr(atomic.LoadPointer(&s.p)), "SwapUnlock of an unlocked SpinPointer")
	atomic.StorePointer(&s.p, unsafe.Pointer(v))
}

// Load returns the stored pointer without taking the lock. The result
// may be replaced immediately by a concurrent lock holder.
func (s *SpinPointer[T]) Load(order MemoryOrder) *T {
	checkLoadOrder(order)
	return (*T)(unlockedPtr(atomic.LoadPointer(&s.p)))
}

// Store replaces the stored pointer, waiting for any holder to finish.
func (s *SpinPointer[T]) Store(v *T, order MemoryOrder) {
	checkStoreOrder(order)
	s.Lock(Acquire)
	s.SwapUnlock(v, order)
}

// Locked reports whether the lock is currently held by anyone.
func (s *SpinPointer[T]) Locked() bool {
	return isLockedPtr(atomic.LoadPointer(&s.p))
}
