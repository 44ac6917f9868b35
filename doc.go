// Package sharedptr provides atomic slots for reference-counted handles
// and the hazard-pointer reclamation engine that makes them safe.
//
// # Overview
//
//   - Shared is a reference-counted handle whose control block carries a
//     StickyCounter: once the count reaches zero it can never be raised
//     again, so a racing reader cannot resurrect a dying value.
//   - AtomicShared is a lock-free slot holding a Shared. Load protects the
//     control block with a hazard pointer before taking a reference.
//   - LockedAtomicShared is the same contract on a SpinPointer, a pointer
//     whose lowest address bit is a spin lock.
//   - Domain and HazardPointer form the reclamation engine: Protect
//     announces a pointer, Retire defers an object, and cleanup scans the
//     registry to reclaim what nobody announces.
//   - PackedWord is an ABA-safe word pairing a value with a 16-bit
//     generation; LockedABA gives the same contract with a lock.
//
// # Reclamation
//
// Control blocks are recycled through per-type pools, so "freeing" a block
// means handing it to a later MakeShared. That reuse is what a stale
// reader must never observe; blocks therefore pass through the default
// Domain and are pooled only after a cleanup finds no announcement.
//
// Cleanup is amortized by default: a hazard slot that accumulated enough
// retirements (WithRetireThreshold, 1000 by default) scans every slot once.
// WithDeamortizedReclamation instead performs a few scan steps on every
// retirement, bounding the latency of each call.
//
// # Memory Orders
//
// Operations accept a MemoryOrder in their Explicit forms. The words they
// touch are sync/atomic words, which are sequentially consistent, so every
// order is strengthened to SeqCst; the order is validated against the
// operation when the package is built with the sharedptr_contracts tag.
// The counters behind Domain.Stats are relaxed and synchronize nothing.
//
// # Example
//
//	h := sharedptr.MakeShared(Config{Rev: 1})
//	slot := sharedptr.NewAtomicShared(&h)
//	defer slot.Close()
//
//	cur := slot.Load() // reader: never blocks the writer
//	use(cur.Get())
//	cur.Release()
//
//	slot.Store(sharedptr.MakeShared(Config{Rev: 2})) // writer
package sharedptr
