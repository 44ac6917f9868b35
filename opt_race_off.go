//go:build !race

package sharedptr

import "code.hybscloud.com/atomix"

const raceEnabled = false

// Statistics need no ordering against the data they count, so relaxed
// atomix words are enough outside the race detector.
type statCounter = atomix.Uint64

type statGauge = atomix.Int64
