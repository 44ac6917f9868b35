package sharedptr

import "sync/atomic"

const (
	// stickyZeroFlag marks a counter that has reached zero. Once set it is
	// never cleared, so the counter reads as zero forever.
	stickyZeroFlag uint64 = 1 << 63
	// stickyHelpFlag is set together with stickyZeroFlag by a Load that
	// observed the raw value zero before the decrementer could publish the
	// flag. The decrementer consumes it to learn that it still owns the
	// transition.
	stickyHelpFlag uint64 = 1 << 62
	stickyMaxCount        = stickyHelpFlag - 1
)

// StickyCounter is a wait-free reference counter that cannot be
// incremented once it has reached zero.
//
// Each successful Decrement that brings the count to zero returns true to
// exactly one caller, which then owns destruction of whatever the counter
// protects. IncrementIfNotZero fails after that point, so a counter that
// hit zero can never be resurrected by a racing reader.
//
// Increments and decrements must balance: no Decrement may be issued once
// the counter is stuck, and a Decrement never subtracts more than the
// current count. Contract checks catch both.
type StickyCounter struct {
	_ noCopy
	v atomic.Uint64
}

// Init sets the count. It is not safe for concurrent use and must happen
// before the counter is published.
func (c *StickyCounter) Init(n uint64) {
	assert(n <= stickyMaxCount, "sticky counter overflow")
	c.v.Store(n)
}

// Load returns the current count, or zero once the counter is stuck.
func (c *StickyCounter) Load() uint64 {
	v := c.v.Load()
	if v == 0 {
		// A decrement brought the raw value to zero but has not yet set the
		// flag; finish the transition on its behalf so this zero is final.
		if c.v.CompareAndSwap(0, stickyZeroFlag|stickyHelpFlag) {
			return 0
		}
		v = c.v.Load()
	}
	if v&stickyZeroFlag != 0 {
		return 0
	}
	return v
}

// IncrementIfNotZero adds n and reports whether the counter was still
// live. On false the caller must not use the reference it hoped to take.
func (c *StickyCounter) IncrementIfNotZero(n uint64) bool {
	v := c.v.Add(n)
	return v&stickyZeroFlag == 0
}

// Decrement subtracts n and reports whether this call moved the counter
// to zero, in which case the caller must destroy the payload.
func (c *StickyCounter) Decrement(n uint64) bool {
	//goland:noinspection ALL
	if enableContractChecks {
		cur := c.v.Load()
		assertf(cur&stickyZeroFlag == 0, "decrement of a counter stuck at zero")
		assertf(cur >= n, "sticky counter decrement %d exceeds count %d", n, cur)
	}
	if c.v.Add(^(n - 1)) != 0 {
		return false
	}
	if c.v.CompareAndSwap(0, stickyZeroFlag) {
		return true
	}
	// Either an increment revived the count before we could publish the
	// flag (the increment linearizes first; its own decrement will finish
	// the job), or a Load helped us. Only the latter makes us the owner.
	v := c.v.Load()
	if v&stickyHelpFlag != 0 {
		return c.v.Swap(stickyZeroFlag)&stickyHelpFlag != 0
	}
	return false
}
