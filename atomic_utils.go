package sharedptr

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"

	"code.hybscloud.com/iox"
)

// noCopy may be embedded into structs which must not be copied
// after the first use. go vet reports copies through the Lock/Unlock
// methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// yieldSpins is the number of plain scheduler yields a waiter performs
// before falling back to iox.Backoff.
const yieldSpins = 16

// spinner implements the wait policy of every busy loop in the package.
// The first attempts yield the processor (the holder is usually running
// on another P and finishes within a few instructions); after that the
// adaptive backoff takes over so a preempted holder does not burn a core.
//
// Partially references:
// [https://github.com/facebook/folly/blob/main/folly/synchronization/PicoSpinLock.h]
type spinner struct {
	spins int
	bo    iox.Backoff
}

func (s *spinner) wait() {
	if s.spins < yieldSpins {
		s.spins++
		runtime.Gosched()
		return
	}
	s.bo.Wait()
}

// assert panics with a package-prefixed message when contract checks
// are compiled in. The condition is still evaluated otherwise, so callers
// guard expensive checks with enableContractChecks themselves.
func assert(cond bool, msg string) {
	//goland:noinspection ALL
	if enableContractChecks && !cond {
		panic("sharedptr: " + msg)
	}
}

func assertf(cond bool, format string, args ...any) {
	//goland:noinspection ALL
	if enableContractChecks && !cond {
		panic(fmt.Sprintf("sharedptr: "+format, args...))
	}
}

type iNonEmptyInterface struct {
	Tab  unsafe.Pointer
	Data unsafe.Pointer
}

// objectAddr returns the data word of o. For the pointer types accepted
// as Object this is the object's address, which is what a hazard slot
// announces.
//
//go:nosplit
func objectAddr(o Object) unsafe.Pointer {
	return (*iNonEmptyInterface)(unsafe.Pointer(&o)).Data
}

// isPointerObject reports whether o's dynamic type is a pointer, the only
// shape for which objectAddr yields the object's own address.
func isPointerObject(o Object) bool {
	return o != nil && reflect.TypeOf(o).Kind() == reflect.Pointer
}
