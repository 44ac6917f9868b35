package sharedptr

import (
	"math/bits"
	"sync/atomic"
	"unsafe"
)

const (
	// slotChunkShift sizes the first chunk of the slot index table; chunk c
	// holds slotChunkBase<<c slots.
	slotChunkShift  = 5
	slotChunkBase   = 1 << slotChunkShift
	slotTableChunks = 24
)

// hazardSlotFields is the state of one registry entry. The entry is
// durably owned by whichever hazard pointer claimed it; only announced is
// read by other goroutines. Slots are never removed from the registry,
// so a scanner can always follow next safely.
type hazardSlotFields struct {
	announced unsafe.Pointer             // protected address, nil when idle
	next      atomic.Pointer[hazardSlot] // registry link, set once
	freeNext  atomic.Uint64              // index+1 of the next free slot
	inUse     atomic.Uint32
	index     uint32

	// Owner-only state. It survives release and is inherited by the next
	// owner of the slot.
	retired      Object
	retiredLen   int
	sinceCleanup int
	cycle        reclaimCycle
	scratch      map[unsafe.Pointer]struct{}
}

//go:nosplit
func (s *hazardSlot) load() unsafe.Pointer {
	return atomic.LoadPointer(&s.announced)
}

//go:nosplit
func (s *hazardSlot) announce(p unsafe.Pointer) {
	atomic.StorePointer(&s.announced, p)
}

// slotChunkOf maps a slot index to its chunk and offset in the table.
func slotChunkOf(i uint32) (chunk int, off uint32) {
	v := uint64(i) + slotChunkBase
	chunk = bits.Len64(v) - 1 - slotChunkShift
	off = uint32(v - slotChunkBase<<chunk)
	return chunk, off
}

func (d *Domain) setSlot(i uint32, s *hazardSlot) {
	c, off := slotChunkOf(i)
	chunk := d.table[c].Load()
	if chunk == nil {
		fresh := make([]atomic.Pointer[hazardSlot], slotChunkBase<<c)
		if d.table[c].CompareAndSwap(nil, &fresh) {
			chunk = &fresh
		} else {
			chunk = d.table[c].Load()
		}
	}
	(*chunk)[off].Store(s)
}

func (d *Domain) slotAt(i uint32) *hazardSlot {
	c, off := slotChunkOf(i)
	return (*d.table[c].Load())[off].Load()
}

// grow appends a fresh slot, already claimed by the caller, to the end of
// the registry.
func (d *Domain) grow() *hazardSlot {
	s := new(hazardSlot)
	s.inUse.Store(1)
	s.index = d.slots.Add(1) - 1
	assert(s.index < slotChunkBase*(1<<slotTableChunks-1), "hazard registry exhausted")
	d.setSlot(s.index, s)
	for {
		t := d.tail.Load()
		if next := t.next.Load(); next != nil {
			d.tail.CompareAndSwap(t, next)
			continue
		}
		if t.next.CompareAndSwap(nil, s) {
			d.tail.CompareAndSwap(t, s)
			return s
		}
	}
}

// pushFree returns s to the free-slot stack.
func (d *Domain) pushFree(s *hazardSlot) {
	for {
		old := d.free.Load()
		s.freeNext.Store(old.Value())
		if d.free.StoreConditional(old, uint64(s.index)+1) {
			return
		}
	}
}

// popFree claims a slot from the free-slot stack, or returns nil when
// every slot is in use. A slot popped and pushed back by other goroutines
// between our Load and StoreConditional leaves the head value unchanged
// but bumps its generation, so the stale next link is never installed.
func (d *Domain) popFree() *hazardSlot {
	for {
		old := d.free.Load()
		if old.Value() == 0 {
			return nil
		}
		s := d.slotAt(uint32(old.Value() - 1))
		next := s.freeNext.Load()
		if d.free.StoreConditional(old, next) {
			prev := s.inUse.Swap(1)
			assert(prev == 0, "hazard slot claimed twice")
			return s
		}
	}
}

// getSlot claims an unused slot, growing the registry if every existing
// slot is in use.
func (d *Domain) getSlot() *hazardSlot {
	if s := d.popFree(); s != nil {
		return s
	}
	return d.grow()
}

// putSlot clears the announcement and returns s to the free state. The
// private retired list stays with the slot.
func (d *Domain) putSlot(s *hazardSlot) {
	s.announce(nil)
	prev := s.inUse.Swap(0)
	assert(prev == 1, "release of an unclaimed hazard slot")
	d.pushFree(s)
}
