package sharedptr

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// IsAlwaysLockFree reports that every AtomicShared operation is lock-free.
const IsAlwaysLockFree = true

// AtomicShared is an atomic slot holding a Shared[T], built on hazard
// pointers. Readers never block writers: Load announces the control block
// it is about to take a reference on, and blocks displaced by writers are
// recycled only once no announcement covers them.
//
// The slot owns one reference to the block it holds. The zero value is
// an empty slot. An AtomicShared must not be copied after first use, and
// should be emptied with Close when discarded.
type AtomicShared[T any] struct {
	_ noCopy
	p atomic.Pointer[controlBlock[T]]
}

// NewAtomicShared returns a slot that takes over the reference held by
// *h, leaving *h empty.
func NewAtomicShared[T any](h *Shared[T]) *AtomicShared[T] {
	a := &AtomicShared[T]{}
	a.p.Store(h.cb)
	h.cb = nil
	return a
}

// IsLockFree reports true.
func (a *AtomicShared[T]) IsLockFree() bool {
	return IsAlwaysLockFree
}

// Load returns a new owned handle to the current value.
func (a *AtomicShared[T]) Load() Shared[T] {
	return a.LoadExplicit(SeqCst)
}

// LoadExplicit is Load with an explicit memory order.
func (a *AtomicShared[T]) LoadExplicit(order MemoryOrder) Shared[T] {
	checkLoadOrder(order)
	if a.p.Load() == nil {
		return Shared[T]{}
	}
	lh := getLoadHazard()
	defer putLoadHazard(lh)
	for {
		cb := Protect(&lh.hp, &a.p)
		if cb == nil {
			return Shared[T]{}
		}
		// The slot's own reference keeps the count above zero for as long
		// as cb is installed; a failed increment means a writer displaced
		// it and dropped the last reference after our validation.
		if cb.addRef(1) {
			return Shared[T]{cb: cb}
		}
	}
}

// Store replaces the value, taking ownership of desired. The displaced
// reference is released after the swap.
func (a *AtomicShared[T]) Store(desired Shared[T]) {
	a.StoreExplicit(desired, SeqCst)
}

// StoreExplicit is Store with an explicit memory order.
func (a *AtomicShared[T]) StoreExplicit(desired Shared[T], order MemoryOrder) {
	checkStoreOrder(order)
	if old := a.p.Swap(desired.cb); old != nil {
		old.releaseRef()
	}
}

// Exchange replaces the value, taking ownership of desired, and returns
// the displaced handle, whose reference now belongs to the caller.
func (a *AtomicShared[T]) Exchange(desired Shared[T]) Shared[T] {
	return a.ExchangeExplicit(desired, SeqCst)
}

// ExchangeExplicit is Exchange with an explicit memory order.
func (a *AtomicShared[T]) ExchangeExplicit(desired Shared[T], order MemoryOrder) Shared[T] {
	checkRMWOrder(order)
	return Shared[T]{cb: a.p.Swap(desired.cb)}
}

// CompareAndSwap is CompareExchangeStrong with SeqCst ordering.
func (a *AtomicShared[T]) CompareAndSwap(expected *Shared[T], desired Shared[T]) bool {
	return a.CompareExchangeStrong(expected, desired, SeqCst, SeqCst)
}

// CompareExchangeWeak installs desired if the slot holds the control
// block of *expected. Blocks are compared by identity, never by value.
//
// On success the slot takes ownership of desired and drops its reference
// to the previous block; *expected is unchanged. On failure *expected is
// released and replaced with an owned handle to the slot's current value,
// and desired remains owned by the caller.
//
// Go's compare-and-swap never fails spuriously, so the weak form only
// fails on a genuine mismatch; it differs from the strong form in not
// retrying when the refreshed value turns out to match again.
func (a *AtomicShared[T]) CompareExchangeWeak(
	expected *Shared[T],
	desired Shared[T],
	success, failure MemoryOrder,
) bool {
	checkCASOrders(success, failure)
	if a.p.CompareAndSwap(expected.cb, desired.cb) {
		if expected.cb != nil {
			expected.cb.releaseRef()
		}
		return true
	}
	cur := a.LoadExplicit(failure)
	expected.Release()
	*expected = cur
	return false
}

// CompareExchangeStrong is like CompareExchangeWeak but only reports
// failure once it has loaded a value that differs from *expected.
func (a *AtomicShared[T]) CompareExchangeStrong(
	expected *Shared[T],
	desired Shared[T],
	success, failure MemoryOrder,
) bool {
	checkCASOrders(success, failure)
	for {
		if a.p.CompareAndSwap(expected.cb, desired.cb) {
			if expected.cb != nil {
				expected.cb.releaseRef()
			}
			return true
		}
		cur := a.LoadExplicit(failure)
		if cur.cb != expected.cb {
			expected.Release()
			*expected = cur
			return false
		}
		// The slot went back to the expected block between the failed
		// swap and the load; the reference we just took is redundant.
		cur.Release()
	}
}

// Close empties the slot, releasing the reference it holds.
func (a *AtomicShared[T]) Close() {
	a.Store(Shared[T]{})
}

// loadHazard is a default-domain hazard pointer cached for Load. Claiming
// a slot pops the domain's free-slot stack, a single word every reader
// would otherwise contend on; the pool keeps slots per P instead. A
// cached entry dropped by the pool returns its slot through a cleanup.
type loadHazard struct {
	hp HazardPointer
}

var loadHazards = sync.Pool{
	New: func() any {
		lh := &loadHazard{hp: DefaultDomain().MakeHazardPointer()}
		runtime.AddCleanup(lh, func(hp HazardPointer) { hp.Release() }, lh.hp)
		return lh
	},
}

func getLoadHazard() *loadHazard {
	//goland:noinspection ALL
	if raceEnabled {
		// The race detector drops pooled items at random, which would
		// strand slots until the next collection.
		return &loadHazard{hp: DefaultDomain().MakeHazardPointer()}
	}
	return loadHazards.Get().(*loadHazard)
}

func putLoadHazard(lh *loadHazard) {
	//goland:noinspection ALL
	if raceEnabled {
		lh.hp.Release()
		return
	}
	lh.hp.Reset()
	loadHazards.Put(lh)
}
