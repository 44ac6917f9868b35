//go:build !race

package sharedptr

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
}
