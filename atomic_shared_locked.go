package sharedptr

// LockedIsAlwaysLockFree reports that LockedAtomicShared operations take
// a spin lock.
const LockedIsAlwaysLockFree = false

// LockedAtomicShared is an atomic slot holding a Shared[T], built on a
// SpinPointer. Every operation takes the lock embedded in the pointer
// word for the few instructions it needs to read or replace the control
// block, taking a reference on a loaded block before unlocking so it
// cannot die in between.
//
// Displaced references are released after unlocking: destroying a
// payload runs user code and must never happen under the lock.
//
// The zero value is an empty slot. A LockedAtomicShared must not be
// copied after first use, and should be emptied with Close when
// discarded.
type LockedAtomicShared[T any] struct {
	p SpinPointer[controlBlock[T]]
}

// NewLockedAtomicShared returns a slot that takes over the reference held
// by *h, leaving *h empty.
func NewLockedAtomicShared[T any](h *Shared[T]) *LockedAtomicShared[T] {
	a := &LockedAtomicShared[T]{}
	a.p.Store(h.cb, Release)
	h.cb = nil
	return a
}

// IsLockFree reports false.
func (a *LockedAtomicShared[T]) IsLockFree() bool {
	return LockedIsAlwaysLockFree
}

// Load returns a new owned handle to the current value.
func (a *LockedAtomicShared[T]) Load() Shared[T] {
	return a.LoadExplicit(SeqCst)
}

// LoadExplicit is Load with an explicit memory order.
func (a *LockedAtomicShared[T]) LoadExplicit(order MemoryOrder) Shared[T] {
	checkLoadOrder(order)
	cb := a.p.Lock(Acquire)
	if cb != nil {
		ok := cb.addRef(1)
		assert(ok, "slot holds a dead control block")
	}
	a.p.Unlock(Release)
	return Shared[T]{cb: cb}
}

// Store replaces the value, taking ownership of desired.
func (a *LockedAtomicShared[T]) Store(desired Shared[T]) {
	a.StoreExplicit(desired, SeqCst)
}

// StoreExplicit is Store with an explicit memory order.
func (a *LockedAtomicShared[T]) StoreExplicit(desired Shared[T], order MemoryOrder) {
	checkStoreOrder(order)
	old := a.exchange(desired.cb)
	old.Release()
}

// Exchange replaces the value, taking ownership of desired, and returns
// the displaced handle.
func (a *LockedAtomicShared[T]) Exchange(desired Shared[T]) Shared[T] {
	return a.ExchangeExplicit(desired, SeqCst)
}

// ExchangeExplicit is Exchange with an explicit memory order.
func (a *LockedAtomicShared[T]) ExchangeExplicit(desired Shared[T], order MemoryOrder) Shared[T] {
	checkRMWOrder(order)
	return a.exchange(desired.cb)
}

func (a *LockedAtomicShared[T]) exchange(cb *controlBlock[T]) Shared[T] {
	old := a.p.Lock(Acquire)
	a.p.SwapUnlock(cb, Release)
	return Shared[T]{cb: old}
}

// CompareAndSwap is CompareExchangeStrong with SeqCst ordering.
func (a *LockedAtomicShared[T]) CompareAndSwap(expected *Shared[T], desired Shared[T]) bool {
	return a.CompareExchangeStrong(expected, desired, SeqCst, SeqCst)
}

// CompareExchangeWeak installs desired if the slot holds the control
// block of *expected, comparing by identity. Ownership follows
// AtomicShared.CompareExchangeWeak. Under the lock the comparison and the
// refresh are one atomic step, so it never fails spuriously.
func (a *LockedAtomicShared[T]) CompareExchangeWeak(
	expected *Shared[T],
	desired Shared[T],
	success, failure MemoryOrder,
) bool {
	return a.CompareExchangeStrong(expected, desired, success, failure)
}

// CompareExchangeStrong is CompareExchangeWeak; see there.
func (a *LockedAtomicShared[T]) CompareExchangeStrong(
	expected *Shared[T],
	desired Shared[T],
	success, failure MemoryOrder,
) bool {
	checkCASOrders(success, failure)
	cur := a.p.Lock(Acquire)
	if cur == expected.cb {
		a.p.SwapUnlock(desired.cb, Release)
		if cur != nil {
			cur.releaseRef()
		}
		return true
	}
	if cur != nil {
		ok := cur.addRef(1)
		assert(ok, "slot holds a dead control block")
	}
	a.p.Unlock(Release)
	expected.Release()
	expected.cb = cur
	return false
}

// Close empties the slot, releasing the reference it holds.
func (a *LockedAtomicShared[T]) Close() {
	//goland:noinspection ALL
	if enableContractChecks && a.p.Locked() {
		panic("sharedptr: Close of a locked slot")
	}
	a.Store(Shared[T]{})
}
