//go:build sharedptr_opt_cachelinesize_32

package sharedptr

// CacheLineSize overrides the detected cache line size.
const CacheLineSize = 32
