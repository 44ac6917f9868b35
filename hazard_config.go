package sharedptr

const (
	// defaultRetireThreshold is the number of retirements a hazard slot
	// accumulates before an amortized cleanup pass runs inline.
	defaultRetireThreshold = 1000
	// defaultDeamortizedWork is the number of scan or check steps a
	// retirement performs in deamortized mode. Anything above one keeps
	// the private list bounded, because a cycle starts only once the list
	// is at least as long as the registry.
	defaultDeamortizedWork = 4
	// defaultPendingCapacity bounds the domain queue that holds objects
	// retired without a hazard pointer.
	defaultPendingCapacity = 4096
	// pendingAdoptBatch caps how many queued objects a single hazard
	// pointer retirement moves onto its private list.
	pendingAdoptBatch = 8
)

// DomainConfig defines configurable Domain options.
type DomainConfig struct {
	retireThreshold int
	deamortized     bool
	deamortizedWork int
	pendingCapacity int
}

// WithRetireThreshold sets the number of retirements per hazard slot that
// triggers an amortized cleanup, and the number of queued domain
// retirements that triggers a drain. Non-positive values are ignored.
func WithRetireThreshold(n int) func(*DomainConfig) {
	return func(c *DomainConfig) {
		if n > 0 {
			c.retireThreshold = n
		}
	}
}

// WithDeamortizedReclamation spreads cleanup across retirements: every
// retirement performs a small bounded amount of scanning instead of a
// periodic full pass, trading throughput for a flat worst-case latency.
func WithDeamortizedReclamation() func(*DomainConfig) {
	return func(c *DomainConfig) {
		c.deamortized = true
	}
}

// WithDeamortizedWork sets the number of steps each retirement performs in
// deamortized mode. Values below 2 are raised to 2.
func WithDeamortizedWork(k int) func(*DomainConfig) {
	return func(c *DomainConfig) {
		c.deamortizedWork = max(k, 2)
	}
}

// WithPendingCapacity sets the capacity of the queue that holds objects
// retired through Domain.Retire. It is rounded up to a power of two.
func WithPendingCapacity(n int) func(*DomainConfig) {
	return func(c *DomainConfig) {
		if n >= 2 {
			c.pendingCapacity = n
		}
	}
}
