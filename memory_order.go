package sharedptr

import "strconv"

// MemoryOrder names the ordering constraint requested for an atomic
// operation, following the C11/C++11 memory model vocabulary.
//
// Every word an ordered operation touches (slot pointers, use counts,
// hazard announcements and the free-slot stack) is accessed through
// sync/atomic, whose operations are sequentially consistent. A requested
// order is therefore honored by strengthening it to SeqCst; the order
// still documents intent and is validated against the operation kind
// when contract checks are enabled. Domain statistics are the exception:
// they are relaxed counters and order nothing.
type MemoryOrder uint8

const (
	Relaxed MemoryOrder = iota
	Consume
	Acquire
	Release
	AcqRel
	SeqCst
)

func (o MemoryOrder) String() string {
	switch o {
	case Relaxed:
		return "relaxed"
	case Consume:
		return "consume"
	case Acquire:
		return "acquire"
	case Release:
		return "release"
	case AcqRel:
		return "acq_rel"
	case SeqCst:
		return "seq_cst"
	default:
		return "MemoryOrder(" + strconv.Itoa(int(o)) + ")"
	}
}

// IsValidLoad reports whether o may be used for a pure load.
func (o MemoryOrder) IsValidLoad() bool {
	switch o {
	case Relaxed, Consume, Acquire, SeqCst:
		return true
	}
	return false
}

// IsValidStore reports whether o may be used for a pure store.
func (o MemoryOrder) IsValidStore() bool {
	switch o {
	case Relaxed, Release, SeqCst:
		return true
	}
	return false
}

// IsValidRMW reports whether o may be used for a read-modify-write.
func (o MemoryOrder) IsValidRMW() bool {
	return o <= SeqCst
}

// IsValidFailure reports whether o may be used as the failure order of
// a compare-exchange: the failure path is a load.
func (o MemoryOrder) IsValidFailure() bool {
	return o.IsValidLoad()
}

func checkLoadOrder(o MemoryOrder) {
	//goland:noinspection ALL
	if enableContractChecks && !o.IsValidLoad() {
		panicOrder("load", o)
	}
}

func checkStoreOrder(o MemoryOrder) {
	//goland:noinspection ALL
	if enableContractChecks && !o.IsValidStore() {
		panicOrder("store", o)
	}
}

func checkRMWOrder(o MemoryOrder) {
	//goland:noinspection ALL
	if enableContractChecks && !o.IsValidRMW() {
		panicOrder("read-modify-write", o)
	}
}

func checkCASOrders(success, failure MemoryOrder) {
	//goland:noinspection ALL
	if enableContractChecks {
		if !success.IsValidRMW() {
			panicOrder("compare-exchange success", success)
		}
		if !failure.IsValidFailure() {
			panicOrder("compare-exchange failure", failure)
		}
	}
}

func panicOrder(op string, o MemoryOrder) {
	panic("sharedptr: invalid memory order " + o.String() + " for " + op)
}
