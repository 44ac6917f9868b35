//go:build sharedptr_opt_cachelinesize_128

package sharedptr

// CacheLineSize overrides the detected cache line size.
const CacheLineSize = 128
