package sharedptr

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/lfq"
)

// Object is a value that can be retired to a Domain and reclaimed once no
// hazard pointer announces it.
//
// Implementations embed ObjBase, which supplies the intrusive link the
// retired lists are threaded through, and must be pointer types: the
// address a hazard pointer announces is the pointer itself.
type Object interface {
	hazardBase() *ObjBase
	// Reclaim recycles the object. It runs exactly once, after the object
	// was retired and no hazard pointer protected it during a cleanup scan.
	Reclaim()
}

// ObjBase is embedded by Object implementations.
type ObjBase struct {
	next Object
}

func (b *ObjBase) hazardBase() *ObjBase {
	return b
}

// Domain is a hazard-pointer reclamation domain: a registry of hazard
// slots plus the retired objects waiting for those slots to stop
// announcing them.
//
// Objects retired to a domain are reclaimed only by cleanups of that
// domain, and only hazard pointers of that domain protect them.
type Domain struct {
	_ noCopy

	head  hazardSlot
	tail  atomic.Pointer[hazardSlot]
	slots atomic.Uint32
	table [slotTableChunks]atomic.Pointer[[]atomic.Pointer[hazardSlot]]
	free  PackedWord

	pending      lfq.Queue[Object]
	pendingCount statGauge
	draining     atomic.Uint32

	retiredTotal   statCounter
	reclaimedTotal statCounter
	cleanups       statCounter

	retireThreshold int
	deamortized     bool
	deamortizedWork int
}

// DomainStats is a point-in-time view of a Domain's counters. The fields
// are relaxed counters read independently, so they may be mutually
// inconsistent under load.
type DomainStats struct {
	Slots     uint32 // registry size, never decreases
	Retired   uint64 // objects handed to the domain
	Reclaimed uint64 // objects whose Reclaim has run
	Cleanups  uint64 // completed cleanup passes or cycles
	Pending   int64  // objects queued by Domain.Retire, not yet adopted
}

// NewDomain creates a reclamation domain.
//
// Parameters:
//   - WithRetireThreshold option for the amortized cleanup period
//   - WithDeamortizedReclamation option for per-retirement bounded cleanup
//   - WithDeamortizedWork option for the per-retirement step budget
//   - WithPendingCapacity option for the Domain.Retire queue capacity
func NewDomain(options ...func(*DomainConfig)) *Domain {
	c := &DomainConfig{
		retireThreshold: defaultRetireThreshold,
		deamortizedWork: defaultDeamortizedWork,
		pendingCapacity: defaultPendingCapacity,
	}
	for _, o := range options {
		o(c)
	}

	d := &Domain{
		retireThreshold: c.retireThreshold,
		deamortized:     c.deamortized,
		deamortizedWork: c.deamortizedWork,
	}
	d.pending = lfq.BuildMPMC[Object](lfq.New(c.pendingCapacity).Compact())
	d.slots.Store(1)
	d.setSlot(0, &d.head)
	d.tail.Store(&d.head)
	d.pushFree(&d.head)
	return d
}

var defaultDomain = sync.OnceValue(func() *Domain {
	return NewDomain()
})

// DefaultDomain returns the process-wide domain used by Shared control
// blocks and by MakeHazardPointer. It is created on first use and never
// torn down: its slots outlive every goroutine that might still touch
// them.
func DefaultDomain() *Domain {
	return defaultDomain()
}

// Stats returns the domain's counters.
func (d *Domain) Stats() DomainStats {
	return DomainStats{
		Slots:     d.slots.Load(),
		Retired:   d.retiredTotal.Load(),
		Reclaimed: d.reclaimedTotal.Load(),
		Cleanups:  d.cleanups.Load(),
		Pending:   d.pendingCount.Load(),
	}
}

// HazardPointer owns one hazard slot of a Domain and can protect a single
// pointer at a time.
//
// A HazardPointer belongs to the goroutine that made it: it must not be
// used concurrently, and must be handed back with Release. The zero value
// is empty and owns nothing.
type HazardPointer struct {
	dom  *Domain
	slot *hazardSlot
}

// MakeHazardPointer claims a slot of the default domain.
func MakeHazardPointer() HazardPointer {
	return DefaultDomain().MakeHazardPointer()
}

// MakeHazardPointer claims a free slot, appending a new one to the
// registry when all are in use.
func (d *Domain) MakeHazardPointer() HazardPointer {
	return HazardPointer{dom: d, slot: d.getSlot()}
}

// IsEmpty reports whether hp owns no slot.
func (hp *HazardPointer) IsEmpty() bool {
	return hp.slot == nil
}

// Domain returns the domain hp's slot belongs to.
func (hp *HazardPointer) Domain() *Domain {
	return hp.dom
}

// Release clears the announcement and returns the slot to the domain.
// Objects retired through hp stay on the slot's private list and are
// reclaimed by a later owner of the slot.
func (hp *HazardPointer) Release() {
	if hp.slot == nil {
		return
	}
	hp.dom.putSlot(hp.slot)
	hp.slot = nil
}

// Reset clears the announcement without releasing the slot.
func (hp *HazardPointer) Reset() {
	hp.slot.announce(nil)
}

// Protect announces the pointer currently stored in src and returns it
// once a re-read of src confirms the announcement happened before any
// retirement of that pointer. The result stays valid until hp protects
// something else, is Reset, or is Released.
func Protect[T any](hp *HazardPointer, src *atomic.Pointer[T]) *T {
	s := hp.slot
	p := src.Load()
	for {
		s.announce(unsafe.Pointer(p))
		q := src.Load()
		if q == p {
			return p
		}
		p = q
	}
}

// TryProtect announces *ptr and checks that src still holds it. On
// mismatch it stores the current value of src into *ptr, clears the
// announcement and returns false.
func TryProtect[T any](hp *HazardPointer, ptr **T, src *atomic.Pointer[T]) bool {
	s := hp.slot
	p := *ptr
	s.announce(unsafe.Pointer(p))
	if q := src.Load(); q != p {
		*ptr = q
		s.announce(nil)
		return false
	}
	return true
}

// ResetProtection announces p without validation. The caller must know
// p cannot have been retired yet, for instance because it holds a
// reference to it. A nil p clears the announcement.
func ResetProtection[T any](hp *HazardPointer, p *T) {
	hp.slot.announce(unsafe.Pointer(p))
}

// Retire hands o to hp's private retired list. o must already be
// unreachable for new readers; readers that protected it earlier keep it
// alive until they move on.
func (hp *HazardPointer) Retire(o Object) {
	//goland:noinspection ALL
	if enableContractChecks && !isPointerObject(o) {
		panic("sharedptr: retired Object must be a non-nil pointer")
	}
	d, s := hp.dom, hp.slot
	d.retiredTotal.Add(1)
	s.pushRetired(o)
	if d.pendingCount.Load() > 0 {
		d.adoptPending(s, pendingAdoptBatch)
	}
	//goland:noinspection ALL
	if d.deamortized {
		d.step(s, d.deamortizedWork)
	} else if s.sinceCleanup >= d.retireThreshold {
		d.cleanup(s)
	}
}

// Cleanup adopts every queued domain retirement and reclaims every object
// on hp's private list that no slot currently announces.
func (hp *HazardPointer) Cleanup() {
	d, s := hp.dom, hp.slot
	d.abortCycle(s)
	d.adoptPending(s, -1)
	d.cleanup(s)
}

// Retire retires o without a hazard pointer. The object is queued on the
// domain and adopted by the next hazard pointer that retires or cleans
// up; when the queue is full, when enough objects are queued, or in
// deamortized mode, the caller borrows a slot and does the work itself.
func (d *Domain) Retire(o Object) {
	//goland:noinspection ALL
	if !d.deamortized {
		err := d.pending.Enqueue(&o)
		if err == nil {
			d.retiredTotal.Add(1)
			if d.pendingCount.Add(1) >= int64(d.retireThreshold) &&
				d.draining.CompareAndSwap(0, 1) {
				hp := d.MakeHazardPointer()
				hp.Cleanup()
				hp.Release()
				d.draining.Store(0)
			}
			return
		}
		if !lfq.IsWouldBlock(err) {
			panic("sharedptr: pending retire queue: " + err.Error())
		}
	}
	hp := d.MakeHazardPointer()
	hp.Retire(o)
	hp.Release()
}

// ReclaimAll claims every free slot of the domain, adopts every queued
// retirement and runs a full cleanup on each claimed slot. Objects that
// are still protected, or that sit on slots currently owned by other
// hazard pointers, are left in place.
//
// It suits quiescent points such as shutdown and tests; while it runs,
// concurrent MakeHazardPointer calls grow the registry.
func (d *Domain) ReclaimAll() {
	var claimed []*hazardSlot
	for {
		s := d.popFree()
		if s == nil {
			break
		}
		claimed = append(claimed, s)
	}
	for _, s := range claimed {
		hp := HazardPointer{dom: d, slot: s}
		hp.Cleanup()
	}
	for _, s := range claimed {
		d.putSlot(s)
	}
}
