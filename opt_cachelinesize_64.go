//go:build sharedptr_opt_cachelinesize_64

package sharedptr

// CacheLineSize overrides the detected cache line size, for targets
// whose padding should not follow golang.org/x/sys/cpu.
const CacheLineSize = 64
