//go:build sharedptr_opt_enablepadding

package sharedptr

import "unsafe"

// enablePadding is true, every hazardSlot is padded to a multiple of the cache line.
// The announced pointer of a slot is written by its owner and read by every
// scanning goroutine, so neighbouring slots otherwise share lines.
// By default, it is turned off.
const enablePadding = true

type hazardSlot struct {
	hazardSlotFields
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(hazardSlotFields{})%CacheLineSize) % CacheLineSize]byte
}
