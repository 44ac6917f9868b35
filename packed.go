package sharedptr

import "sync/atomic"

const (
	// TaggedValueBits is the width of the value half of a Tagged word.
	TaggedValueBits = 48
	// TaggedGenerationBits is the width of the generation counter. The
	// ABA guarantee holds for fewer than 1<<TaggedGenerationBits
	// successful stores between a Load and the matching StoreConditional.
	TaggedGenerationBits = 64 - TaggedValueBits
	// MaxTaggedValue is the largest value a Tagged word can carry.
	MaxTaggedValue = 1<<TaggedValueBits - 1
)

// Tagged is a value paired with a generation counter in one machine word.
type Tagged uint64

func makeTagged(value uint64, gen uint16) Tagged {
	return Tagged(uint64(gen)<<TaggedValueBits | value&MaxTaggedValue)
}

// Value returns the value half.
func (t Tagged) Value() uint64 {
	return uint64(t) & MaxTaggedValue
}

// Generation returns the number of successful stores, modulo 2^16,
// that produced t.
func (t Tagged) Generation() uint16 {
	return uint16(uint64(t) >> TaggedValueBits)
}

// PackedWord is an ABA-safe atomic cell for small values such as slot
// indices. Every successful store increments the generation, so a
// StoreConditional against a stale Load is rejected even when the value
// has since returned to what was read.
//
// The generation is 16 bits wide. A goroutine that is descheduled across
// exactly a multiple of 65536 successful stores, during which the value
// also returns to the one it read, will have its stale StoreConditional
// accepted. That bound is accepted as-is; it requires a pathological
// preemption to hit in practice.
//
// The value is an integer rather than an address: the garbage collector
// does not trace pointers hidden in integers, so callers pack indices
// into memory they keep reachable themselves.
type PackedWord struct {
	_ noCopy
	w atomic.Uint64
}

// Load atomically reads the value and its generation.
func (p *PackedWord) Load() Tagged {
	return Tagged(p.w.Load())
}

// StoreConditional replaces the value with value if the word still holds
// old, bumping the generation. It reports whether the store happened.
func (p *PackedWord) StoreConditional(old Tagged, value uint64) bool {
	assert(value <= MaxTaggedValue, "tagged value out of range")
	return p.w.CompareAndSwap(uint64(old), uint64(makeTagged(value, old.Generation()+1)))
}

// Store unconditionally replaces the value, still bumping the generation
// so concurrent StoreConditional calls observe the modification.
func (p *PackedWord) Store(value uint64) {
	for {
		old := p.Load()
		if p.StoreConditional(old, value) {
			return
		}
	}
}

// IsLockFree reports true: the word is a single 64-bit atomic.
func (p *PackedWord) IsLockFree() bool {
	return true
}

// LockedABA offers the read/store-conditional contract of PackedWord for
// arbitrary pointers by holding a spin lock between Read and the
// StoreConditional (or Abandon) that must follow it. There is no
// operation bound, but every access costs a lock round trip and a
// descheduled holder stalls every other accessor.
type LockedABA[T any] struct {
	p SpinPointer[T]
}

// Read locks the cell and returns its value. The caller must follow with
// exactly one StoreConditional or Abandon on the same goroutine.
func (a *LockedABA[T]) Read() *T {
	return a.p.Lock(Acquire)
}

// StoreConditional replaces the value read by Read and unlocks. Holding
// the lock guarantees nothing intervened, so it always succeeds.
func (a *LockedABA[T]) StoreConditional(v *T) bool {
	assert(a.p.Locked(), "StoreConditional without Read")
	a.p.SwapUnlock(v, Release)
	return true
}

// Abandon unlocks without modifying the value.
func (a *LockedABA[T]) Abandon() {
	a.p.Unlock(Release)
}

// Load returns the current value without taking part in the protocol.
func (a *LockedABA[T]) Load() *T {
	return a.p.Load(Acquire)
}

// IsLockFree reports false: readers exclude each other.
func (a *LockedABA[T]) IsLockFree() bool {
	return false
}
