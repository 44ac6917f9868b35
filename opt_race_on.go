//go:build race

package sharedptr

import "sync/atomic"

// Under race detector, statistics counters use sync/atomic so that
// Stats can be read while other goroutines retire and reclaim.
const raceEnabled = true

type statCounter = atomic.Uint64

type statGauge = atomic.Int64
