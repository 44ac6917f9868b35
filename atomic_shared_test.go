package sharedptr

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// sharedSlot is the contract both slot variants implement.
type sharedSlot[T any] interface {
	IsLockFree() bool
	Load() Shared[T]
	Store(desired Shared[T])
	Exchange(desired Shared[T]) Shared[T]
	CompareAndSwap(expected *Shared[T], desired Shared[T]) bool
	CompareExchangeWeak(expected *Shared[T], desired Shared[T], success, failure MemoryOrder) bool
	CompareExchangeStrong(expected *Shared[T], desired Shared[T], success, failure MemoryOrder) bool
	Close()
}

type slotVariant struct {
	name     string
	lockFree bool
	newInt   func(h *Shared[int]) sharedSlot[int]
}

var slotVariants = []slotVariant{
	{
		name:     "HazardPointer",
		lockFree: true,
		newInt:   func(h *Shared[int]) sharedSlot[int] { return NewAtomicShared(h) },
	},
	{
		name:     "Locked",
		lockFree: false,
		newInt:   func(h *Shared[int]) sharedSlot[int] { return NewLockedAtomicShared(h) },
	},
}

func forEachSlot(t *testing.T, f func(t *testing.T, v slotVariant)) {
	for _, v := range slotVariants {
		t.Run(v.name, func(t *testing.T) {
			f(t, v)
		})
	}
}

// counted returns a handle to v whose destruction increments n.
func counted(v int, n *atomic.Int32) Shared[int] {
	return MakeSharedFunc(v, func(*int) { n.Add(1) })
}

func TestAtomicShared_IsLockFree(t *testing.T) {
	if !IsAlwaysLockFree || LockedIsAlwaysLockFree {
		t.Fatal("unexpected lock-freedom constants")
	}
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		var h Shared[int]
		s := v.newInt(&h)
		defer s.Close()
		if s.IsLockFree() != v.lockFree {
			t.Fatalf("IsLockFree() = %v, want %v", s.IsLockFree(), v.lockFree)
		}
	})
}

func TestAtomicShared_EmptySlot(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		var h Shared[int]
		s := v.newInt(&h)
		defer s.Close()
		if l := s.Load(); !l.IsNil() {
			t.Fatal("Load of an empty slot is not nil")
		}
		var zero AtomicShared[int]
		if l := zero.Load(); !l.IsNil() {
			t.Fatal("zero AtomicShared is not empty")
		}
		var zeroLocked LockedAtomicShared[int]
		if l := zeroLocked.Load(); !l.IsNil() {
			t.Fatal("zero LockedAtomicShared is not empty")
		}
	})
}

func TestAtomicShared_StoreLoadRoundTrip(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		var destroyed atomic.Int32
		h := counted(7, &destroyed)
		s := v.newInt(&h)
		if !h.IsNil() {
			t.Fatal("constructor did not take over the handle")
		}

		a := s.Load()
		if *a.Get() != 7 || a.UseCount() != 2 {
			t.Fatalf("Load: value %d count %d", *a.Get(), a.UseCount())
		}
		b := s.Load()
		if !a.Same(b) || b.UseCount() != 3 {
			t.Fatalf("second Load: same=%v count=%d", a.Same(b), b.UseCount())
		}
		a.Release()
		b.Release()

		s.Store(MakeShared(8))
		if destroyed.Load() != 1 {
			t.Fatal("Store did not release the displaced value")
		}
		c := s.Load()
		if *c.Get() != 8 || c.UseCount() != 2 {
			t.Fatalf("after Store: value %d count %d", *c.Get(), c.UseCount())
		}
		c.Release()
		s.Close()
		if l := s.Load(); !l.IsNil() {
			t.Fatal("slot not empty after Close")
		}
	})
}

func TestAtomicShared_Exchange(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		h := MakeShared(5)
		clone := h.Clone()
		s := v.newInt(&h)
		defer s.Close()

		old := s.Exchange(MakeShared(42))
		if !old.Same(clone) || *old.Get() != 5 {
			t.Fatal("Exchange did not return the displaced handle")
		}
		clone.Release()
		if old.UseCount() != 1 {
			t.Fatalf("displaced handle count = %d, want 1", old.UseCount())
		}
		old.Release()

		cur := s.Load()
		if *cur.Get() != 42 || cur.UseCount() != 2 {
			t.Fatalf("Load after Exchange: value %d count %d", *cur.Get(), cur.UseCount())
		}
		cur.Release()
	})
}

func TestAtomicShared_CompareExchangeIdentity(t *testing.T) {
	type casFunc func(s sharedSlot[int], expected *Shared[int], desired Shared[int]) bool
	kinds := map[string]casFunc{
		"CompareAndSwap": func(s sharedSlot[int], e *Shared[int], d Shared[int]) bool {
			return s.CompareAndSwap(e, d)
		},
		"Weak": func(s sharedSlot[int], e *Shared[int], d Shared[int]) bool {
			return s.CompareExchangeWeak(e, d, AcqRel, Acquire)
		},
		"Strong": func(s sharedSlot[int], e *Shared[int], d Shared[int]) bool {
			return s.CompareExchangeStrong(e, d, SeqCst, Relaxed)
		},
	}
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		for name, cas := range kinds {
			t.Run(name, func(t *testing.T) {
				var installedGone, impostorGone, desiredGone atomic.Int32
				h := counted(5, &installedGone)
				s := v.newInt(&h)
				defer s.Close()

				// A different block holding an equal value must not match.
				expected := counted(5, &impostorGone)
				desired := counted(6, &desiredGone)
				if cas(s, &expected, desired) {
					t.Fatal("compare-exchange matched by value")
				}
				if impostorGone.Load() != 1 {
					t.Fatal("failed compare-exchange did not release expected")
				}
				if *expected.Get() != 5 || expected.UseCount() != 2 {
					t.Fatalf("refreshed expected: value %d count %d", *expected.Get(), expected.UseCount())
				}
				if desiredGone.Load() != 0 || desired.UseCount() != 1 {
					t.Fatal("failed compare-exchange consumed desired")
				}

				if !cas(s, &expected, desired) {
					t.Fatal("compare-exchange with the current block failed")
				}
				if expected.UseCount() != 1 {
					t.Fatalf("slot kept its reference to the displaced block: count %d", expected.UseCount())
				}
				expected.Release()
				if installedGone.Load() != 1 {
					t.Fatal("displaced block not destroyed after the last release")
				}

				cur := s.Load()
				if *cur.Get() != 6 || cur.UseCount() != 2 {
					t.Fatalf("after swap: value %d count %d", *cur.Get(), cur.UseCount())
				}
				cur.Release()
			})
		}
	})
}

func TestAtomicShared_CompareExchangeEmpty(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		var h Shared[int]
		s := v.newInt(&h)
		defer s.Close()

		var expected Shared[int]
		if !s.CompareAndSwap(&expected, MakeShared(1)) {
			t.Fatal("compare-exchange on an empty slot with an empty expected failed")
		}
		if !expected.IsNil() {
			t.Fatal("successful compare-exchange changed expected")
		}
		desired := MakeShared(2)
		if s.CompareAndSwap(&expected, desired) {
			t.Fatal("empty expected matched a full slot")
		}
		if *expected.Get() != 1 {
			t.Fatalf("expected refreshed to %d, want 1", *expected.Get())
		}
		desired.Release()
		expected.Release()
	})
}

func TestAtomicShared_CloseReleases(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		var destroyed atomic.Int32
		h := counted(3, &destroyed)
		s := v.newInt(&h)
		s.Close()
		if destroyed.Load() != 1 {
			t.Fatal("Close did not release the held value")
		}
		s.Close()
	})
}

// TestAtomicShared_ExchangeConservation has goroutines exchange unique
// values through one slot. Every value must come out exactly once.
func TestAtomicShared_ExchangeConservation(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		goroutines := max(4, runtime.GOMAXPROCS(0))
		perG := 5000
		if testing.Short() {
			perG = 500
		}
		var destroyed atomic.Int32
		h := counted(0, &destroyed)
		s := v.newInt(&h)

		out := make([][]int, goroutines)
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := range goroutines {
			go func() {
				defer wg.Done()
				for i := range perG {
					old := s.Exchange(counted(1+g*perG+i, &destroyed))
					if !old.IsNil() {
						out[g] = append(out[g], *old.Get())
						old.Release()
					}
				}
			}()
		}
		wg.Wait()
		last := s.Exchange(Shared[int]{})
		seen := make(map[int]int, goroutines*perG+1)
		seen[*last.Get()]++
		last.Release()
		for _, vals := range out {
			for _, x := range vals {
				seen[x]++
			}
		}

		produced := goroutines*perG + 1
		if len(seen) != produced {
			t.Fatalf("got %d distinct values, want %d", len(seen), produced)
		}
		for x, n := range seen {
			if n != 1 {
				t.Fatalf("value %d came out %d times", x, n)
			}
		}
		if int(destroyed.Load()) != produced {
			t.Fatalf("destroyed %d blocks, want %d", destroyed.Load(), produced)
		}
		s.Close()
	})
}

// TestAtomicShared_ConcurrentLoadStore races readers against writers. The
// stored values are never zero and a destroyed block has its value
// cleared, so a reader that sees zero holds a dead reference.
func TestAtomicShared_ConcurrentLoadStore(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		h := MakeShared(1)
		s := v.newInt(&h)
		defer s.Close()

		stop := make(chan struct{})
		var bad atomic.Int64
		var wg sync.WaitGroup
		readers := max(2, runtime.GOMAXPROCS(0)/2)
		wg.Add(readers)
		for range readers {
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					l := s.Load()
					if l.IsNil() || *l.Get() == 0 || l.UseCount() == 0 {
						bad.Add(1)
					}
					l.Release()
				}
			}()
		}

		const writers = 2
		writes := 20000
		if testing.Short() {
			writes = 2000
		}
		var ww sync.WaitGroup
		ww.Add(writers)
		for w := range writers {
			go func() {
				defer ww.Done()
				for i := range writes {
					s.Store(MakeShared(1 + w*writes + i))
				}
			}()
		}
		ww.Wait()
		close(stop)
		wg.Wait()
		if bad.Load() != 0 {
			t.Fatalf("%d loads returned a dead value", bad.Load())
		}
	})
}

// TestAtomicShared_CompareExchangeCounter increments a counter held in the
// slot with copy-on-write compare-exchange loops.
func TestAtomicShared_CompareExchangeCounter(t *testing.T) {
	forEachSlot(t, func(t *testing.T, v slotVariant) {
		h := MakeShared(0)
		s := v.newInt(&h)
		defer s.Close()

		goroutines := max(4, runtime.GOMAXPROCS(0))
		perG := 2000
		if testing.Short() {
			perG = 200
		}
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := range goroutines {
			go func() {
				defer wg.Done()
				for range perG {
					cur := s.Load()
					next := MakeShared(*cur.Get() + 1)
					for {
						var ok bool
						if g%2 == 0 {
							ok = s.CompareExchangeWeak(&cur, next, AcqRel, Acquire)
						} else {
							ok = s.CompareExchangeStrong(&cur, next, SeqCst, SeqCst)
						}
						if ok {
							break
						}
						*next.Get() = *cur.Get() + 1
					}
					cur.Release()
				}
			}()
		}
		wg.Wait()

		final := s.Load()
		defer final.Release()
		if want := goroutines * perG; *final.Get() != want {
			t.Fatalf("counter = %d, want %d", *final.Get(), want)
		}
	})
}

func TestAtomicShared_LoadReusesHazardSlots(t *testing.T) {
	if raceEnabled {
		t.Skip("load hazards are not cached under the race detector")
	}
	h := MakeShared(1)
	s := NewAtomicShared(&h)
	defer s.Close()

	before := DefaultDomain().Stats().Slots
	for range 10000 {
		l := s.Load()
		l.Release()
	}
	grown := DefaultDomain().Stats().Slots - before
	if limit := uint32(runtime.GOMAXPROCS(0)) + 2; grown > limit {
		t.Fatalf("registry grew by %d slots over sequential loads (limit %d)", grown, limit)
	}
}
