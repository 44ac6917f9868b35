//go:build sharedptr_opt_cachelinesize_256

package sharedptr

// CacheLineSize overrides the detected cache line size.
const CacheLineSize = 256
